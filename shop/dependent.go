package shop

// Dependent is implemented by Service, Staff and Discount.
type Dependent[T any] interface {
	EntityID() string
	IdempotencyKey() string
	Label() string
	WithIdentity(id, clientKey string) T
}

func (s Service) EntityID() string { return s.ID }
func (s Service) IdempotencyKey() string { return s.ClientKey }
func (s Service) Label() string { return s.Name }

func (s Service) WithIdentity(id, clientKey string) Service {
	s.ID, s.ClientKey = id, clientKey
	return s
}

func (s Staff) EntityID() string { return s.ID }
func (s Staff) IdempotencyKey() string { return s.ClientKey }
func (s Staff) Label() string { return s.Name }

func (s Staff) WithIdentity(id, clientKey string) Staff {
	s.ID, s.ClientKey = id, clientKey
	return s
}

func (d Discount) EntityID() string { return d.ID }
func (d Discount) IdempotencyKey() string { return d.ClientKey }

func (d Discount) Label() string {
	if d.Code != "" {
		return d.Code
	}
	return d.Name
}

func (d Discount) WithIdentity(id, clientKey string) Discount {
	d.ID, d.ClientKey = id, clientKey
	return d
}
