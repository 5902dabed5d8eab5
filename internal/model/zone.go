package model

// Zone is a DNS zone as reported by the Provider.
type Zone struct {
	ID   string
	Name string
}
