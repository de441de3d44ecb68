package model

import "testing"

func TestGenerateSessionCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateSessionCode()
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		seen[code] = true
	}
	// 100 次全部撞车的概率可以忽略
	if len(seen) < 2 {
		t.Errorf("generator produced %d distinct codes out of 100", len(seen))
	}
}

func TestVerifyCode(t *testing.T) {
	s := &Session{Code: "042137"}
	if !s.VerifyCode("042137") {
		t.Error("correct code rejected")
	}
	if s.VerifyCode("042138") {
		t.Error("wrong code accepted")
	}

	// 没有加入码的会话任何输入都不通过
	empty := &Session{}
	if empty.VerifyCode("") {
		t.Error("empty code on codeless session accepted")
	}
}

func TestDeckIDListRoundTrip(t *testing.T) {
	s := &Session{}
	if got := s.DeckIDList(); got != nil {
		t.Fatalf("empty session deck list = %v, want nil", got)
	}
	if err := s.SetDeckIDList([]string{"d1", "d2"}); err != nil {
		t.Fatalf("SetDeckIDList: %v", err)
	}
	got := s.DeckIDList()
	if len(got) != 2 || got[0] != "d1" || got[1] != "d2" {
		t.Fatalf("deck list = %v, want [d1 d2]", got)
	}
}
