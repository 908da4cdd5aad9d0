package browser

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// Selector renders a UI target as an XPath expression for chromedp.BySearch.
func Selector(t schemas.UITarget) string {
	lit := xpathLiteral(t.Name)
	switch t.Kind {
	case schemas.TargetTestID:
		return fmt.Sprintf("//*[@data-testid=%s]", lit)
	case schemas.TargetText:
		// Innermost match only, so a wrapping <div> is never picked over the
		// element that actually carries the text.
		return fmt.Sprintf("//*[normalize-space(.)=%[1]s and not(.//*[normalize-space(.)=%[1]s])]", lit)
	case schemas.TargetRole:
		return roleSelector(t.Role, lit, t.Prefix)
	default:
		return fmt.Sprintf("//*[@id=%s]", lit)
	}
}

func roleSelector(role, lit string, prefix bool) string {
	text := fmt.Sprintf("normalize-space(.)=%s", lit)
	if prefix {
		text = fmt.Sprintf("starts-with(normalize-space(.), %s)", lit)
	}
	named := fmt.Sprintf("[%s or @aria-label=%s]", text, lit)

	switch role {
	case "button":
		return fmt.Sprintf("//button%[1]s | //*[@role='button']%[1]s | //input[@type='submit' or @type='button'][@value=%[2]s]", named, lit)
	case "link":
		return fmt.Sprintf("//a%[1]s | //*[@role='link']%[1]s", named)
	case "option":
		return fmt.Sprintf("//option[%[1]s] | //*[@role='option'][%[1]s]", text)
	case "checkbox":
		attrs := fmt.Sprintf("[@name=%[1]s or @id=%[1]s or @aria-label=%[1]s]", lit)
		return fmt.Sprintf("//input[@type='checkbox']%s | //*[@role='checkbox']%s", attrs, named)
	default:
		return fmt.Sprintf("//*[@role=%s]%s", xpathLiteral(role), named)
	}
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
