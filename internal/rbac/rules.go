package rbac

// Permissions are "resource:action". A grant ending in "*" covers every
// action on the resource.
const (
	UserProfile   = "user:profile"
	QuizView      = "quiz:view"
	QuizCreate    = "quiz:create"
	QuizListOwn   = "quiz:list_own"
	QuizUpdate    = "quiz:update"
	QuizDelete    = "quiz:delete"
	StatsViewOwn  = "stats:view_own"
	AttemptView   = "attempt:view"
	AttemptStart  = "attempt:start"
	AttemptSave   = "attempt:save"
	AttemptSubmit = "attempt:submit"
	ChatUse       = "chat:use"
)

// RolePermissions is the default policy. Ownership of a particular quiz or
// attempt is checked by the services, not here.
var RolePermissions = map[string][]string{
	"student": {
		QuizView,
		"attempt:*",
		UserProfile,
	},
	"instructor": {
		"quiz:*",
		StatsViewOwn,
		ChatUse,
		"attempt:*",
		UserProfile,
	},
}
