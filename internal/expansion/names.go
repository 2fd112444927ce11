package expansion

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

// selfName is reserved for a module's self-reference in use declarations.
const selfName = "Self"

var titleCaser = cases.Title(language.English)

// reservedNames cannot be bound by any declaration; they are primitive types
// or builtin name forms.
var reservedNames = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true,
	"u128": true, "u256": true,
	"bool": true, "address": true, "signer": true, "vector": true,
}

// NameCase describes what kind of binding a name check is for; it drives
// diagnostic wording only.
type NameCase uint8

const (
	CaseModuleName NameCase = iota
	CaseModuleAlias
	CaseModuleMemberAlias
	CaseVariable
	CaseAddress
	CaseConstant
	CaseStruct
	CaseSchema
	CaseFunction
	CaseTypeParameter
)

func (c NameCase) String() string {
	switch c {
	case CaseModuleName:
		return "module name"
	case CaseModuleAlias:
		return "module alias"
	case CaseModuleMemberAlias:
		return "module member alias"
	case CaseVariable:
		return "variable name"
	case CaseAddress:
		return "address name"
	case CaseConstant:
		return "constant name"
	case CaseStruct:
		return "struct name"
	case CaseSchema:
		return "schema name"
	case CaseFunction:
		return "function name"
	case CaseTypeParameter:
		return "type parameter name"
	default:
		return "name"
	}
}

// checkRestrictedName rejects reserved identifiers and the Self keyword in
// any binding position.
func checkRestrictedName(env *shared.CompilationEnv, c NameCase, n source.Name) bool {
	if n.Value == selfName {
		env.AddDiag(diag.New(diag.NameResolutionReservedName, n.Span,
			fmt.Sprintf("invalid %s '%s'. '%s' is restricted and cannot be used here", c, n.Value, selfName)))
		return false
	}
	if reservedNames[n.Value] {
		env.AddDiag(diag.New(diag.NameResolutionReservedName, n.Span,
			fmt.Sprintf("invalid %s '%s'. '%s' is a reserved type name and cannot be used here", c, n.Value, n.Value)))
		return false
	}
	return true
}

// checkValidModuleMemberName enforces leading-case rules per member kind:
// structs, constants, and schemas are upper-camel, functions lower.
func checkValidModuleMemberName(env *shared.CompilationEnv, c NameCase, n source.Name) bool {
	if !checkRestrictedName(env, c, n) {
		return false
	}
	switch c {
	case CaseConstant, CaseStruct, CaseSchema:
		if !startsUpper(n.Value) {
			env.AddDiag(diag.New(diag.DeclarationsInvalidName, n.Span,
				fmt.Sprintf("invalid %s '%s'. %ss must start with 'A'..'Z'",
					c, n.Value, titleCaser.String(c.String()))))
			return false
		}
	case CaseFunction:
		if startsUpper(n.Value) {
			env.AddDiag(diag.New(diag.DeclarationsInvalidName, n.Span,
				fmt.Sprintf("invalid %s '%s'. %ss must start with 'a'..'z' or '_'",
					c, n.Value, titleCaser.String(c.String()))))
			return false
		}
	}
	return true
}

// checkValidLocalName allows leading lowercase or underscore.
func checkValidLocalName(env *shared.CompilationEnv, n source.Name) bool {
	if !checkRestrictedName(env, CaseVariable, n) {
		return false
	}
	if startsUpper(n.Value) {
		env.AddDiag(diag.New(diag.DeclarationsInvalidName, n.Span,
			fmt.Sprintf("invalid variable name '%s'. Variable names must start with 'a'..'z' or '_'", n.Value)))
		return false
	}
	return true
}

func startsUpper(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}
