package expansion

import (
	"testing"

	"mica/internal/source"
)

func testIdent(f *fixture, addrHex, name string) ModuleIdent {
	la := f.anon(addrHex)
	return ModuleIdent{
		Loc:     f.span(),
		Address: AnonymousAddress(la.Loc, *la.Anon),
		Module:  f.name(name),
	}
}

func TestAliasLookupMarksUsed(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")

	b := NewAliasMapBuilder()
	if _, ok := b.AddModuleAlias(f.name("c"), coin); !ok {
		t.Fatalf("fresh alias rejected")
	}

	m := NewAliasMap()
	outer := m.AddAndShadowAll(b)

	got, ok := m.GetModule("c")
	if !ok || got.Key() != coin.Key() {
		t.Fatalf("lookup failed: ok=%v got=%v", ok, got)
	}
	if unused := m.SetToOuterScope(outer); len(unused) != 0 {
		t.Fatalf("used alias reported unused: %+v", unused)
	}
}

func TestAliasUnusedReported(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")
	mintName := f.name("mint")

	b := NewAliasMapBuilder()
	b.AddModuleAlias(f.name("c"), coin)
	b.AddMemberAlias(f.name("mint"), coin, mintName)

	m := NewAliasMap()
	outer := m.AddAndShadowAll(b)
	unused := m.SetToOuterScope(outer)

	if len(unused) != 2 {
		t.Fatalf("expected 2 unused aliases, got %+v", unused)
	}
	byKind := map[AliasEntryKind]UnusedAlias{}
	for _, u := range unused {
		byKind[u.Kind] = u
	}
	if u, ok := byKind[AliasEntryModule]; !ok || u.Name.Value != "c" {
		t.Errorf("missing module alias report: %+v", unused)
	}
	u, ok := byKind[AliasEntryMember]
	if !ok || u.Name.Value != "mint" {
		t.Fatalf("missing member alias report: %+v", unused)
	}
	if u.Module.Key() != coin.Key() || u.Member.Value != "mint" {
		t.Errorf("member report lost its target: %+v", u)
	}
}

func TestAliasImplicitNeverReported(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")

	b := NewAliasMapBuilder()
	b.AddImplicitModuleAlias(f.name("coin"), coin)
	b.AddImplicitMemberAlias(f.name("mint"), coin, f.name("mint"))

	m := NewAliasMap()
	outer := m.AddAndShadowAll(b)
	if unused := m.SetToOuterScope(outer); len(unused) != 0 {
		t.Fatalf("implicit aliases reported unused: %+v", unused)
	}
}

func TestAliasDuplicateRejected(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")
	token := testIdent(f, "0x2", "token")

	b := NewAliasMapBuilder()
	first := f.name("c")
	b.AddModuleAlias(first, coin)
	prev, ok := b.AddModuleAlias(f.name("c"), token)
	if ok {
		t.Fatalf("duplicate alias accepted")
	}
	if prev != first.Span {
		t.Errorf("conflict did not report the first definition site")
	}
}

func TestAliasInnerScopeShadowsAndRestores(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")
	token := testIdent(f, "0x2", "token")

	m := NewAliasMap()
	outerB := NewAliasMapBuilder()
	outerB.AddModuleAlias(f.name("c"), coin)
	top := m.AddAndShadowAll(outerB)

	innerB := NewAliasMapBuilder()
	innerB.AddModuleAlias(f.name("c"), token)
	inner := m.AddAndShadowAll(innerB)

	if got, _ := m.GetModule("c"); got.Key() != token.Key() {
		t.Fatalf("inner binding not in effect: %v", got)
	}

	m.SetToOuterScope(inner)
	got, ok := m.GetModule("c")
	if !ok || got.Key() != coin.Key() {
		t.Fatalf("outer binding not restored: ok=%v got=%v", ok, got)
	}
	if unused := m.SetToOuterScope(top); len(unused) != 0 {
		t.Fatalf("restored binding was looked up, still reported: %+v", unused)
	}
}

func TestAliasShadowRestoresUnusedState(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")
	token := testIdent(f, "0x2", "token")

	m := NewAliasMap()
	outerB := NewAliasMapBuilder()
	outerB.AddModuleAlias(f.name("c"), coin)
	top := m.AddAndShadowAll(outerB)

	// the inner scope uses its own binding; the outer one stays untouched
	innerB := NewAliasMapBuilder()
	innerB.AddModuleAlias(f.name("c"), token)
	inner := m.AddAndShadowAll(innerB)
	m.GetModule("c")
	if unused := m.SetToOuterScope(inner); len(unused) != 0 {
		t.Fatalf("inner alias was used: %+v", unused)
	}

	unused := m.SetToOuterScope(top)
	if len(unused) != 1 || unused[0].Name.Value != "c" {
		t.Fatalf("outer alias should still be unused: %+v", unused)
	}
}

func TestShadowForTypeParameters(t *testing.T) {
	f := &fixture{}
	coin := testIdent(f, "0x2", "coin")

	m := NewAliasMap()
	b := NewAliasMapBuilder()
	b.AddModuleAlias(f.name("T"), coin)
	b.AddMemberAlias(f.name("T2"), coin, f.name("mint"))
	top := m.AddAndShadowAll(b)

	hidden := m.ShadowForTypeParameters([]source.Name{f.name("T"), f.name("T2")})
	if _, ok := m.GetModule("T"); ok {
		t.Fatalf("type parameter did not hide the module alias")
	}
	if _, _, ok := m.GetMember("T2"); ok {
		t.Fatalf("type parameter did not hide the member alias")
	}

	m.SetToOuterScope(hidden)
	if _, ok := m.GetModule("T"); !ok {
		t.Fatalf("module alias not restored after parameter scope")
	}
	if _, _, ok := m.GetMember("T2"); !ok {
		t.Fatalf("member alias not restored after parameter scope")
	}
	if unused := m.SetToOuterScope(top); len(unused) != 0 {
		t.Fatalf("restored aliases were looked up, still reported: %+v", unused)
	}
}
