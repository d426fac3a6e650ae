package rbac

const (
	PermQuizWrite     = "quiz:write"
	PermAttemptTake   = "attempt:take"
	PermResultsOwn    = "results:view-own"
	PermResultsClass  = "results:view-class"
	PermGradingRead   = "grading:read"
	PermGradingWrite  = "grading:write"
	PermProfilesWrite = "profiles:write"
	PermJournalRead   = "journal:read"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// RolePermissions is the default policy. Teachers see only the classes they
// own; handlers scope queries by the caller's uid.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermAttemptTake,
		PermResultsOwn,
	},
	RoleTeacher: {
		PermQuizWrite,
		PermResultsClass,
		"grading:*",
	},
	RoleAdmin: {
		"*", // everything
	},
}
