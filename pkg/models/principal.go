package models

// Principal is the currently authenticated actor. A nil *Principal means
// anonymous; anonymous viewers can read but not write.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Email       string `json:"email,omitempty"`
	// Admin grants delete-any and block escalation.
	Admin bool `json:"admin,omitempty"`
}
