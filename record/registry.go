package record

// Relationship defines an owner-child relationship between collections.
type Relationship struct {
	// ParentCollection is the owning collection (e.g., "shops").
	ParentCollection string

	// ChildCollection is the dependent collection (e.g., "services").
	ChildCollection string

	// OwnerField is the field in the child that references the parent (e.g., "shop_id").
	OwnerField string
}

// Registry holds all known owner relationships.
type Registry struct {
	relationships []Relationship
	byChild       map[string]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byChild:       make(map[string]Relationship),
	}
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byChild[rel.ChildCollection] = rel
}

// ParentOf returns the relationship that owns a child collection.
func (r *Registry) ParentOf(child string) (Relationship, bool) {
	rel, ok := r.byChild[child]
	return rel, ok
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}
