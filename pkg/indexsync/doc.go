// Package indexsync makes sure every index a mapper writes to exists in the
// search backend before documents are written.
//
// # State Machine
//
// Each distinct index name is provisioned at most once per run:
//
//	UNKNOWN ──exists──► EXISTS
//	   │
//	   └──absent──► create ──succeeded──► CREATED
//	                   └─────refused────► CREATE_FAILED
//
// A refusal reported by the backend (CreateResult.Succeeded == false) is logged
// and recorded, not returned as an error. Transport errors from the backend
// propagate and leave the index in UNKNOWN.
//
// # Usage
//
//	s, err := indexsync.New(mapper, indexsync.WithParallelism(2))
//	if err != nil {
//	    return err
//	}
//	report, err := s.EnsureIndexesExist(ctx, backend)
//	for _, name := range report.Failed() {
//	    // creation was refused for name
//	}
//
// Provisioning is not atomic: another writer may create an index between the
// existence check and the create call. The backend then refuses the create and
// the index ends up CREATE_FAILED while actually existing.
package indexsync
