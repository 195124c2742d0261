package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// nonRendered lists elements whose text never shows up on screen
const nonRendered = "self::script or self::style or self::noscript or self::template"

// textXPath matches the innermost rendered body elements whose normalized text contains text
func textXPath(text string) string {
	lit := xpathLiteral(text)
	return fmt.Sprintf("//body//*[not(%s) and contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])]", nonRendered, lit, lit)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}

// anyVisibleScript evaluates to true when at least one node matched by xpath is displayed
func anyVisibleScript(xpath string) string {
	quoted, _ := json.Marshal(xpath)
	return fmt.Sprintf(`(() => {
	const result = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < result.snapshotLength; i++) {
		const el = result.snapshotItem(i);
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		if (el.getClientRects().length === 0) continue;
		return true;
	}
	return false;
})()`, quoted)
}
