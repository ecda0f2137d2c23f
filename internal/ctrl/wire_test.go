package ctrl

import "testing"

func TestRecordEncodeDecodeRoundtrip(t *testing.T) {
	req := NewRequest(CmdStartSvc, 2, []byte("web,db:1"))
	b, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != RecordSize {
		t.Fatalf("expected encoded length %d, got %d", RecordSize, len(b))
	}

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Cmd != CmdStartSvc || got.Runlevel != 2 {
		t.Fatalf("unexpected decoded record: %+v", got)
	}
	if string(got.Payload()) != "web,db:1" {
		t.Fatalf("unexpected payload: %q", got.Payload())
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	req := NewRequest(CmdDebug, 0, nil)
	b, _ := req.Encode()
	b[0] ^= 0xff // corrupt the magic's first byte

	if _, err := Decode(b); err == nil {
		t.Fatal("expected bad magic to be rejected")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected wrong-length record to be rejected")
	}
}
