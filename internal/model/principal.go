package model

// Principal is anything a notification can be addressed to.
type Principal interface {
	DisplayName() string
}

// HasAddress is implemented by principals that receive mail directly.
type HasAddress interface {
	Principal
	Address() string
}

// ExpandsToMembers is implemented by principals that stand for other principals.
type ExpandsToMembers interface {
	Principal
	Members() []Principal
}

// Person is a user or contact with a single address.
type Person struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

func (p *Person) DisplayName() string { return p.Name }
func (p *Person) Address() string     { return p.Email }

// Group is a team or department. Direct holds first-level members only.
type Group struct {
	ID          string    `json:"id"`
	Type        OwnerType `json:"type"`
	Description string    `json:"description"`
	Direct      []Principal
}

func (g *Group) DisplayName() string  { return g.Description }
func (g *Group) Members() []Principal { return g.Direct }
