// internal/locator/locator.go
package locator

import "fmt"

// Strategy identifies how a locator value should be interpreted by the
// device driver.
type Strategy string

const (
	// ID matches the full resource identifier of an element.
	ID Strategy = "id"
	// AccessibilityID matches the accessibility label / content description.
	AccessibilityID Strategy = "accessibility-id"
	// Text matches the exact visible text of an element.
	Text Strategy = "text"
	// XPath matches an XPath expression against the UI hierarchy.
	XPath Strategy = "xpath"
	// ClassName matches the element's widget class.
	ClassName Strategy = "class"
)

// Locator is an immutable descriptor identifying zero or more UI elements.
// It is comparable and is used directly as a cache key.
type Locator struct {
	Strategy Strategy
	Value    string
}

// New builds a Locator from a strategy and value.
func New(strategy Strategy, value string) Locator {
	return Locator{Strategy: strategy, Value: value}
}

// ByID returns a resource-id locator.
func ByID(value string) Locator { return Locator{Strategy: ID, Value: value} }

// ByAccessibilityID returns an accessibility label locator.
func ByAccessibilityID(value string) Locator {
	return Locator{Strategy: AccessibilityID, Value: value}
}

// ByText returns an exact visible-text locator.
func ByText(value string) Locator { return Locator{Strategy: Text, Value: value} }

// ByXPath returns an XPath locator.
func ByXPath(value string) Locator { return Locator{Strategy: XPath, Value: value} }

// IsZero reports whether the locator is the empty value.
func (l Locator) IsZero() bool { return l.Strategy == "" && l.Value == "" }

// String renders the locator as "strategy=value", e.g. "id=btn_login".
func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}
