// Package mapping turns graph entities into search documents.
//
// A [Mapper] copies every property of a node or relationship into a [Document],
// except the configured key property, which becomes the document ID instead.
//
// # Architecture
//
//	┌──────────────┐   Properties()   ┌──────────────┐   Document    ┌──────────────┐
//	│ graph.Entity │ ───────────────► │    Mapper    │ ────────────► │ search index │
//	└──────────────┘                  │  normalize   │   Key() = ID  └──────────────┘
//	                                  │  enrich      │
//	                                  └──────┬───────┘
//	                                         │ IndexFor(kind)
//	                                  ┌──────▼───────┐
//	                                  │  IndexNamer  │
//	                                  └──────────────┘
//
// Two collaborators are injected at construction:
//
//   - [IndexNamer] decides which index a node or relationship is written to.
//   - [Enricher] adds or overrides fields after the generic property copy.
//
// # Usage
//
//	m, err := mapping.New(mapping.PerKindIndex, mapping.WithEnricher(mapping.LabelEnricher{}))
//	if err != nil {
//	    return err
//	}
//	m.Configure(map[string]string{"index": "people", "forceStrings": "true"})
//
//	id, _ := m.Key(node)
//	doc, err := m.MapToDocument(node)
//
// Configure must run before any other operation; until then operations return
// [ErrNotConfigured]. Configuration is set once and never changes afterwards.
//
// # Thread Safety
//
// A configured Mapper is safe for concurrent use. MapToDocument only reads the
// immutable configuration and the entity it is given.
package mapping
