package schemas

import (
	"fmt"
)

// BrowserMode selects whether a browser context shows a window.
type BrowserMode int

const (
	ModeVisible BrowserMode = iota
	ModeHeadless
)

func (m BrowserMode) String() string {
	if m == ModeHeadless {
		return "headless"
	}
	return "visible"
}

// TargetKind tells the driver how to resolve a UITarget.
type TargetKind string

const (
	// TargetRole matches an element by ARIA role and accessible name.
	TargetRole TargetKind = "role"
	// TargetTestID matches the data-testid attribute.
	TargetTestID TargetKind = "testid"
	// TargetText matches the innermost element whose text equals Name.
	TargetText TargetKind = "text"
)

// UITarget is an abstract reference to an interactive element on the signup
// page. The driver turns it into whatever locator it needs.
type UITarget struct {
	// ID is a stable logical name, used in logs and by test doubles.
	ID   string     `json:"id"`
	Kind TargetKind `json:"kind"`
	// Role is only used with TargetRole ("button", "checkbox", "option", "link").
	Role string `json:"role,omitempty"`
	// Name is the accessible name, test id or text, depending on Kind.
	Name string `json:"name"`
	// Prefix allows Name to match the beginning of the element text only.
	Prefix bool `json:"prefix,omitempty"`
}

func (t UITarget) String() string {
	if t.Kind == TargetRole {
		return fmt.Sprintf("%s(%s %q)", t.ID, t.Role, t.Name)
	}
	return fmt.Sprintf("%s(%s %q)", t.ID, t.Kind, t.Name)
}

// RoleTarget builds a TargetRole reference.
func RoleTarget(id, role, name string) UITarget {
	return UITarget{ID: id, Kind: TargetRole, Role: role, Name: name}
}

// TestIDTarget builds a TargetTestID reference.
func TestIDTarget(id, testID string) UITarget {
	return UITarget{ID: id, Kind: TargetTestID, Name: testID}
}

// TextTarget builds a TargetText reference.
func TextTarget(id, text string) UITarget {
	return UITarget{ID: id, Kind: TargetText, Name: text}
}
