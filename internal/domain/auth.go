package domain

// SubjectType differentiates users vs staff tokens.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeStaff  SubjectType = "STAFF"
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// Principal is the authenticated caller as carried by its bearer token.
// Accounts live in an upstream identity service.
type Principal struct {
	SubjectID string
	Subject   SubjectType
	Role      *StaffRole
}

// IsStaff reports whether the caller is a support operator.
func (p Principal) IsStaff() bool {
	return p.Subject == SubjectTypeStaff
}
