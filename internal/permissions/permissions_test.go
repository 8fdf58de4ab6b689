package permissions

import "testing"

func TestEffectiveRoleOnly(t *testing.T) {
	eff := Effective([]string{TextMessages, New}, nil, nil)
	if !eff[TextMessages] || !eff[New] {
		t.Fatal("role permissions missing from effective set")
	}
	if eff[Image] {
		t.Fatal("unexpected capability in effective set")
	}
}

func TestEffectiveGrantExtendsRole(t *testing.T) {
	eff := Effective([]string{TextMessages}, []string{Image}, nil)
	if !eff[Image] {
		t.Fatal("granted capability missing")
	}
	if !eff[TextMessages] {
		t.Fatal("role capability lost after grant")
	}
}

func TestEffectiveRevocationWins(t *testing.T) {
	eff := Effective([]string{TextMessages, Image}, nil, []string{Image})
	if eff[Image] {
		t.Fatal("revoked capability still effective")
	}
	if !eff[TextMessages] {
		t.Fatal("unrelated capability lost")
	}
}

func TestHas(t *testing.T) {
	role := []string{TextMessages}
	if !Has(role, []string{Image}, nil, Image) {
		t.Fatal("expected granted capability")
	}
	if Has(role, nil, []string{TextMessages}, TextMessages) {
		t.Fatal("expected revoked capability to be denied")
	}
	if Has(role, nil, nil, ChangePermission) {
		t.Fatal("expected absent capability to be denied")
	}
}

func TestKnown(t *testing.T) {
	for _, c := range All {
		if !Known(c) {
			t.Fatalf("capability %q not recognized", c)
		}
	}
	if Known("rm-rf") {
		t.Fatal("unknown capability recognized")
	}
}
