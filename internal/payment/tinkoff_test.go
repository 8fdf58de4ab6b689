package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSignTokenSortsFieldsAndIncludesPassword(t *testing.T) {
	fields := map[string]string{
		"TerminalKey": "TestTerminal",
		"Amount":      "19200",
		"OrderId":     "21090",
		"Description": "Gift card",
	}
	// Alphabetical key order with Password merged in:
	// Amount, Description, OrderId, Password, TerminalKey.
	raw := "19200" + "Gift card" + "21090" + "usaf8fw8fsw21g" + "TestTerminal"
	sum := sha256.Sum256([]byte(raw))
	want := hex.EncodeToString(sum[:])

	got := SignToken(fields, "usaf8fw8fsw21g")
	if got != want {
		t.Fatalf("token = %s, want %s", got, want)
	}
}

func TestSignTokenExcludesTokenAndSignature(t *testing.T) {
	base := map[string]string{"Amount": "100", "OrderId": "1"}
	withJunk := map[string]string{
		"Amount":    "100",
		"OrderId":   "1",
		"Token":     "should-not-matter",
		"Signature": "neither-this",
	}
	if SignToken(base, "pw") != SignToken(withJunk, "pw") {
		t.Fatal("Token/Signature fields leaked into the signature")
	}
}

func TestVerifyWebhook(t *testing.T) {
	tk := NewTinkoff(TinkoffOptions{TerminalKey: "term", Password: "pw"})
	fields := map[string]string{
		"TerminalKey": "term",
		"PaymentId":   "12345",
		"Status":      "CONFIRMED",
		"Amount":      "10000",
	}
	token := SignToken(fields, "pw")

	if !tk.VerifyWebhook(fields, token) {
		t.Fatal("valid signature rejected")
	}
	// Providers differ on hex case.
	if !tk.VerifyWebhook(fields, strings.ToUpper(token)) {
		t.Fatal("uppercase signature rejected")
	}
	if tk.VerifyWebhook(fields, "deadbeef") {
		t.Fatal("bogus signature accepted")
	}
	if tk.VerifyWebhook(fields, "") {
		t.Fatal("empty signature accepted")
	}

	fields["Amount"] = "999"
	if tk.VerifyWebhook(fields, token) {
		t.Fatal("tampered payload accepted")
	}
}
