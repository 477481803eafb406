package veripi

import "testing"

func compile(t *testing.T, src string) *Translation {
	t.Helper()
	net := mustParse(t, src)
	resolved, err := NewResolver(nil).Resolve(net)
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	tr, err := Translate(resolved, nil)
	if err != nil {
		t.Fatalf("unexpected translate error: %v", err)
	}
	return tr
}

func findsAttack(t *testing.T, tr *Translation) bool {
	t.Helper()
	engine := NewQueryEngine(tr.InitialStates, tr.Query, tr.Rules, tr.RecommendedDepth, nil)
	var found bool
	engine.Execute(nil, func(a *Attack) { found = true }, nil, nil, 0)
	return found
}

func TestTranslateDirectOutputIsAttacked(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
query attacker(secret).
process out(c, secret)`)

	if !findsAttack(t, tr) {
		t.Fatalf("expected writing the secret to a public channel to be attacked")
	}
}

func TestTranslateSecretNeverWrittenIsSafe(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
query attacker(secret).
process out(c, c)`)

	if findsAttack(t, tr) {
		t.Fatalf("did not expect the attacker to derive a secret that's never published")
	}
}

func TestTranslatePrivateChannelSpliceDeliversSecret(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
free priv: channel [private].
query attacker(secret).
process out(priv, secret) | in(priv, x: bitstring); out(c, x)`)

	if !findsAttack(t, tr) {
		t.Fatalf("expected the secret, spliced through a private channel then republished, to be attacked")
	}
}

func TestTranslateEncryptionProtectsSecret(t *testing.T) {
	tr := compile(t, `free c: channel.
fun enc(bitstring, bitstring): bitstring.
free secret: bitstring [private].
free k: bitstring [private].
query attacker(secret).
process out(c, enc(secret, k))`)

	if findsAttack(t, tr) {
		t.Fatalf("did not expect the attacker to derive the secret from a ciphertext without the key")
	}
}

func TestTranslateLeakedKeyBreaksEncryption(t *testing.T) {
	tr := compile(t, `free c: channel.
fun enc(bitstring, bitstring): bitstring.
reduc forall m: bitstring, key: bitstring; dec(enc(m, key), key) = m.
free secret: bitstring [private].
free k: bitstring [private].
query attacker(secret).
process out(c, enc(secret, k)) | out(c, k)`)

	if !findsAttack(t, tr) {
		t.Fatalf("expected the attacker to decrypt once both the ciphertext and the key are public")
	}
}

func TestTranslateSeedsSocketLifecycle(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
query attacker(secret).
process out(c, secret)`)

	if len(tr.InitialStates) == 0 {
		t.Fatalf("expected the socket pre-processing pass to seed at least one initial state")
	}
	var sawTransferring bool
	for _, r := range tr.Rules {
		if r.Kind == Transferring {
			sawTransferring = true
		}
	}
	if !sawTransferring {
		t.Fatalf("expected the socket lifecycle to contribute at least one State-Transferring rule")
	}
}

func TestTranslatePrivateChannelSpliceLinksSockets(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
free priv: channel [private].
query attacker(secret).
process out(priv, secret) | in(priv, x: bitstring); out(c, x)`)

	var sawReadState, sawWriteState bool
	for _, r := range tr.Rules {
		if r.Kind != Transferring {
			continue
		}
		if r.TransferTo.Value.Equal(StateRead(NewName("secret"))) {
			sawReadState = true
		}
		if r.TransferTo.Value.Equal(StateWrite(NewName("secret"))) {
			sawWriteState = true
		}
	}
	if !sawReadState || !sawWriteState {
		t.Fatalf("expected the private splice to produce real Write/Read socket transitions, not just the substitution-based splice")
	}
}

func TestTranslateIfGuardsRelease(t *testing.T) {
	tr := compile(t, `free c: channel.
free secret: bitstring [private].
free tag: bitstring [private].
query attacker(secret).
process in(c, x: bitstring); if x = tag then out(c, secret)`)

	if findsAttack(t, tr) {
		t.Fatalf("did not expect the guarded branch to fire without the attacker knowing tag")
	}
}
