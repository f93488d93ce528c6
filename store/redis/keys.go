package redis

// DefaultNamespace prefixes every key unless WithNamespace overrides it.
const DefaultNamespace = "sodmaster"

// jobKey returns the key for a job record: {ns}:job:{id}
func (s *Store) jobKey(id string) string { return s.namespace + ":job:" + id }
