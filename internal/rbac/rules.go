package rbac

// Default policy. Students work with their own attempts and profile;
// teachers own the quiz lifecycle and can inspect any attempt or profile.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"profile:view-own",
	},
	"teacher": {
		"quiz:create",
		"quiz:edit",
		"quiz:publish",
		"quiz:view",
		"quiz:view-full",
		"quiz:list-own",
		"attempt:view-all",
		"profile:view-any",
	},
	"admin": {
		"*", // everything
	},
}
