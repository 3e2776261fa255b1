package session

// Profile is the identity part of a session, copied from the provider's user object.
type Profile struct {
	ID            string
	Username      string
	GlobalName    string
	Discriminator string
	Avatar        string
}

// DisplayName returns the global display name when the provider set one and
// the username otherwise.
func (p Profile) DisplayName() string {
	if p.GlobalName != "" {
		return p.GlobalName
	}
	return p.Username
}

// Membership is one community the user belongs to.
type Membership struct {
	ID   string
	Name string
}

// Record is the server-side session created after a completed authorization.
//
// Record instances are written once by [Store.Create] and treated as immutable afterwards.
// Memberships keep the order the provider returned them in.
type Record struct {
	SessionID   string
	Profile     Profile
	Memberships []Membership

	CreatedAt int64
	ExpiresAt int64
}
