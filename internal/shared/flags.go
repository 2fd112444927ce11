package shared

// Flags are the compilation-wide options recognized by the driver.
type Flags struct {
	// Test changes unused-alias reporting and triggers test-plan
	// construction after control-flow lowering.
	Test bool
	// SourcesShadowDeps lets a source module silently supersede a
	// dependency module with the same identity instead of reporting a
	// duplicate definition.
	SourcesShadowDeps bool
	// KeepWarningsOnDeps disables the blanket filter-everything set
	// normally applied to dependency-origin declarations. Diagnostic use
	// only.
	KeepWarningsOnDeps bool
}

// Feature gates language features per package edition.
type Feature uint8

const (
	// FeatureDotCall enables receiver-style call syntax and use fun.
	FeatureDotCall Feature = iota
	// FeatureLetMut requires explicit mut annotations on locals.
	FeatureLetMut
	// FeaturePublicPackage enables public(package) visibility.
	FeaturePublicPackage
	// FeaturePositionalFields enables positional struct fields.
	FeaturePositionalFields
)

func (f Feature) String() string {
	switch f {
	case FeatureDotCall:
		return "method syntax"
	case FeatureLetMut:
		return "'let mut' declarations"
	case FeaturePublicPackage:
		return "'public(package)' visibility"
	case FeaturePositionalFields:
		return "positional fields"
	}
	return "unknown feature"
}
