package mockgen

import "strings"

// Role is the semantic kind of a column, resolved from its name.
type Role int

const (
	// RoleDefault is the fallback for any name without a dedicated generator.
	RoleDefault Role = iota
	RoleName
	RoleDate
	RoleBatchID
	RoleID
	RoleEmail
	RoleAge
	RoleScore
	RoleValue
	RoleAmount
)

var roleNames = map[Role]string{
	RoleDefault: "default",
	RoleName:    "name",
	RoleDate:    "date",
	RoleBatchID: "batch_id",
	RoleID:      "id",
	RoleEmail:   "email",
	RoleAge:     "age",
	RoleScore:   "score",
	RoleValue:   "value",
	RoleAmount:  "amount",
}

// roleByToken maps normalized column names to roles. Both spellings of
// batch id resolve to the same role.
var roleByToken = map[string]Role{
	"name":     RoleName,
	"date":     RoleDate,
	"batch id": RoleBatchID,
	"batch_id": RoleBatchID,
	"id":       RoleID,
	"email":    RoleEmail,
	"age":      RoleAge,
	"score":    RoleScore,
	"value":    RoleValue,
	"amount":   RoleAmount,
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "default"
}

// RoleOf resolves a column name to its role. Matching is case-insensitive and
// ignores surrounding whitespace; unknown names get RoleDefault.
func RoleOf(column string) Role {
	if r, ok := roleByToken[strings.ToLower(strings.TrimSpace(column))]; ok {
		return r
	}
	return RoleDefault
}

// Numeric reports whether values of this role are numbers.
func (r Role) Numeric() bool {
	switch r {
	case RoleID, RoleAge, RoleScore, RoleValue, RoleAmount:
		return true
	}
	return false
}
