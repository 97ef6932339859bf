package runner

import "github.com/xraph/runner/id"

// ID is the primary identifier type for runner entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
