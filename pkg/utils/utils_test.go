package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 000-1":          "15550001",
		" 5550001 ":               "5550001",
		"5550001@s.whatsapp.net":  "5550001@s.whatsapp.net",
		"120363000000000@g.us":    "120363000000000@g.us",
	}
	for in, want := range cases {
		got := in
		SanitizePhone(&got)
		assert.Equal(t, want, got, in)
	}
	SanitizePhone(nil)
}

func TestPhoneFromJID(t *testing.T) {
	assert.Equal(t, "5550001", PhoneFromJID("5550001@s.whatsapp.net"))
	assert.Equal(t, "5550001", PhoneFromJID("5550001:12@s.whatsapp.net"))
	assert.Equal(t, "5550001", PhoneFromJID("5550001"))
}

func TestDestinationKey(t *testing.T) {
	assert.Equal(t, "5550001", DestinationKey("5550001"))
	assert.Equal(t, "5550001", DestinationKey("5550001@s.whatsapp.net"))
	assert.Equal(t, "5550001", DestinationKey("5550001:3@s.whatsapp.net"))
	assert.Equal(t, "120363025@g.us", DestinationKey("120363025@g.us"))
	assert.Equal(t, "8812@lid", DestinationKey("8812@lid"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hola", Truncate("hola", 10))
	assert.Equal(t, "ho…", Truncate("hola", 2))
	assert.Equal(t, "ñá…", Truncate("ñáéí", 2))
}

func TestGetMessageDigestOrSignature(t *testing.T) {
	sig, err := GetMessageDigestOrSignature([]byte(`{"a":1}`), []byte("secret"))
	assert.NoError(t, err)
	assert.Len(t, sig, 64)

	again, _ := GetMessageDigestOrSignature([]byte(`{"a":1}`), []byte("secret"))
	other, _ := GetMessageDigestOrSignature([]byte(`{"a":1}`), []byte("other"))
	assert.Equal(t, sig, again)
	assert.NotEqual(t, sig, other)
}

func TestGetPersistentServerID(t *testing.T) {
	assert.Equal(t, "fixed", GetPersistentServerID("fixed", t.TempDir()))

	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte("wagw-stored\n"), 0644))
	assert.Equal(t, "wagw-stored", GetPersistentServerID("", dir))
}
