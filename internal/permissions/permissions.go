package permissions

// Capability names gate every user-facing operation. Roles carry a base set;
// per-user overrides grant or revoke individual capabilities on top.
const (
	Register         = "register"
	Delete           = "delete"
	ShowUsers        = "show_users"
	TextMessages     = "text_messages"
	VoiceMessages    = "voice_messages"
	ModelInfo        = "model_info"
	ChangeModel      = "change_model"
	Image            = "image"
	Upscale          = "upscale"
	Outpaint         = "outpaint"
	Replace          = "replace"
	Recolor          = "recolor"
	RemoveBG         = "removebg"
	Sketch           = "sketch"
	Style            = "style"
	ChangePermission = "change_permission"
	New              = "new"
	Pay              = "pay"
	Balance          = "balance"
)

// All lists every known capability, in display order for admin dialogs.
var All = []string{
	Register,
	Delete,
	ShowUsers,
	TextMessages,
	VoiceMessages,
	ModelInfo,
	ChangeModel,
	Image,
	Upscale,
	Outpaint,
	Replace,
	Recolor,
	RemoveBG,
	Sketch,
	Style,
	ChangePermission,
	New,
	Pay,
	Balance,
}

// Known reports whether name is a recognized capability.
func Known(name string) bool {
	for _, c := range All {
		if c == name {
			return true
		}
	}
	return false
}

// Effective computes the capability set a user actually holds:
// (role permissions plus grants) minus revocations. Revocations win over
// role permissions but a grant and a revocation of the same capability never
// coexist; the storage layer keeps the two lists disjoint.
func Effective(rolePerms, add, remove []string) map[string]bool {
	out := make(map[string]bool, len(rolePerms)+len(add))
	for _, p := range rolePerms {
		out[p] = true
	}
	for _, p := range add {
		out[p] = true
	}
	for _, p := range remove {
		delete(out, p)
	}
	return out
}

// Has reports whether the effective set derived from the three lists
// contains the capability.
func Has(rolePerms, add, remove []string, capability string) bool {
	return Effective(rolePerms, add, remove)[capability]
}
