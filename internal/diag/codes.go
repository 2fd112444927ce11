package diag

import (
	"fmt"
)

// Category groups diagnostic codes by the subsystem that emits them.
type Category uint8

const (
	CategoryBug Category = iota + 1
	CategorySyntax
	CategoryNameResolution
	CategoryDeclarations
	CategoryAttributes
	CategoryUnusedItem
)

func (c Category) String() string {
	switch c {
	case CategoryBug:
		return "Bug"
	case CategorySyntax:
		return "Syntax"
	case CategoryNameResolution:
		return "NameResolution"
	case CategoryDeclarations:
		return "Declarations"
	case CategoryAttributes:
		return "Attributes"
	case CategoryUnusedItem:
		return "UnusedItem"
	}
	return "Unknown"
}

// Code identifies one diagnostic within its category.
type Code struct {
	Category Category
	Value    uint8
}

func (c Code) String() string {
	return fmt.Sprintf("%s%02d%03d", c.Category.severity().letter(), c.Category, c.Value)
}

func (s Severity) letter() string {
	switch {
	case s >= SevBug:
		return "ICE"
	case s >= SevNonblockingError:
		return "E"
	case s >= SevWarning:
		return "W"
	default:
		return "I"
	}
}

// severity returns the fixed severity every code in the category carries.
// Name resolution failures block type checking; most other malformed-input
// conditions are nonblocking so one run reports as many as possible.
func (c Category) severity() Severity {
	switch c {
	case CategoryBug:
		return SevBug
	case CategoryNameResolution:
		return SevBlockingError
	case CategoryUnusedItem:
		return SevWarning
	default:
		return SevNonblockingError
	}
}

// Severity of the code itself.
func (c Code) Severity() Severity { return c.Category.severity() }

var (
	// Internal consistency violations. These are paired with panics; a code
	// exists only so external tooling can classify a crash report.
	BugUnexpectedState = Code{CategoryBug, 1}

	// Syntax (post-parse structural rules).
	SyntaxInvalidNumber         = Code{CategorySyntax, 1}
	SyntaxSpecContextRestricted = Code{CategorySyntax, 2}
	SyntaxInvalidLValue         = Code{CategorySyntax, 3}
	SyntaxInvalidByteString     = Code{CategorySyntax, 4}

	// Name resolution.
	NameResolutionAddressWithoutValue  = Code{CategoryNameResolution, 1}
	NameResolutionUnboundModule        = Code{CategoryNameResolution, 2}
	NameResolutionUnboundModuleMember  = Code{CategoryNameResolution, 3}
	NameResolutionReservedName         = Code{CategoryNameResolution, 4}
	NameResolutionNamePositionMismatch = Code{CategoryNameResolution, 5}

	// Declarations.
	DeclarationsDuplicateItem      = Code{CategoryDeclarations, 1}
	DeclarationsInvalidModule      = Code{CategoryDeclarations, 2}
	DeclarationsInvalidName        = Code{CategoryDeclarations, 3}
	DeclarationsInvalidVisibility  = Code{CategoryDeclarations, 4}
	DeclarationsInvalidUseFun      = Code{CategoryDeclarations, 5}
	DeclarationsInvalidScript      = Code{CategoryDeclarations, 6}
	DeclarationsUnnecessaryItem    = Code{CategoryDeclarations, 7}
	DeclarationsInvalidAttribute   = Code{CategoryDeclarations, 8}
	DeclarationsDuplicateAttribute = Code{CategoryDeclarations, 9}

	// Attributes (warning filter parsing).
	AttributesInvalidValue = Code{CategoryAttributes, 1}

	// Unused items.
	UnusedItemAlias  = Code{CategoryUnusedItem, 1}
	UnusedItemUseFun = Code{CategoryUnusedItem, 2}
)
