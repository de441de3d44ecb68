package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		kind     CardKind
		response CardResponse
	}{
		{"mcq", KindSimpleMCQ, SimpleMCQResponse{SelectedOption: intPtr(2)}},
		{"yesno", KindYesNo, YesNoResponse{SelectedOption: intPtr(1)}},
		{"thisthat", KindThisThat, ThisThatResponse{SelectedOption: intPtr(0)}},
		{"fill", KindFillInTheBlanks, FillInTheBlanksResponse{Answer: "photosynthesis"}},
		{"short", KindShortAnswer, ShortAnswerResponse{Answer: "the mitochondria"}},
		{"match", KindMatchTheFollowing, MatchTheFollowingResponse{ConnectedPairs: []int{2, UnconnectedPair, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeResponse(tt.kind, tt.response)
			if err != nil {
				t.Fatalf("EncodeResponse: %v", err)
			}
			if raw == nil {
				t.Fatal("EncodeResponse returned nil for answered response")
			}

			// 原始值经 JSON 通道后数字变 float64，解码必须兼容
			data, err := json.Marshal(raw)
			if err != nil {
				t.Fatalf("marshal raw: %v", err)
			}
			var transported interface{}
			if err := json.Unmarshal(data, &transported); err != nil {
				t.Fatalf("unmarshal raw: %v", err)
			}

			decoded, err := DecodeResponse(tt.kind, transported)
			if err != nil {
				t.Fatalf("DecodeResponse: %v", err)
			}
			if decoded.ResponseKind() != tt.kind {
				t.Fatalf("decoded kind = %s, want %s", decoded.ResponseKind(), tt.kind)
			}

			switch want := tt.response.(type) {
			case SimpleMCQResponse:
				got := decoded.(SimpleMCQResponse)
				if *got.SelectedOption != *want.SelectedOption {
					t.Errorf("selected = %d, want %d", *got.SelectedOption, *want.SelectedOption)
				}
			case YesNoResponse:
				got := decoded.(YesNoResponse)
				if *got.SelectedOption != *want.SelectedOption {
					t.Errorf("selected = %d, want %d", *got.SelectedOption, *want.SelectedOption)
				}
			case ThisThatResponse:
				got := decoded.(ThisThatResponse)
				if *got.SelectedOption != *want.SelectedOption {
					t.Errorf("selected = %d, want %d", *got.SelectedOption, *want.SelectedOption)
				}
			case FillInTheBlanksResponse:
				got := decoded.(FillInTheBlanksResponse)
				if got.Answer != want.Answer {
					t.Errorf("answer = %q, want %q", got.Answer, want.Answer)
				}
			case ShortAnswerResponse:
				got := decoded.(ShortAnswerResponse)
				if got.Answer != want.Answer {
					t.Errorf("answer = %q, want %q", got.Answer, want.Answer)
				}
			case MatchTheFollowingResponse:
				got := decoded.(MatchTheFollowingResponse)
				if len(got.ConnectedPairs) != len(want.ConnectedPairs) {
					t.Fatalf("pairs len = %d, want %d", len(got.ConnectedPairs), len(want.ConnectedPairs))
				}
				for i := range want.ConnectedPairs {
					if got.ConnectedPairs[i] != want.ConnectedPairs[i] {
						t.Errorf("pairs[%d] = %d, want %d", i, got.ConnectedPairs[i], want.ConnectedPairs[i])
					}
				}
			}
		})
	}
}

func TestEncodeResponseUnanswered(t *testing.T) {
	raw, err := EncodeResponse(KindSimpleMCQ, SimpleMCQResponse{})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	if raw != nil {
		t.Errorf("unanswered mcq encoded to %v, want nil", raw)
	}
}

func TestEncodeResponseKindMismatch(t *testing.T) {
	_, err := EncodeResponse(KindSimpleMCQ, YesNoResponse{SelectedOption: intPtr(0)})
	if err == nil {
		t.Fatal("expected error for mismatched response kind")
	}
}

func TestCodecUnsupportedKinds(t *testing.T) {
	// 这些类型没有响应编解码器，必须报 DecodeError 而不是静默通过
	kinds := []CardKind{KindImage, KindLinkToFile, KindOneWord, KindOpenEnded, KindSimpleVote}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			_, err := DecodeResponse(kind, 1)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("DecodeResponse err = %v, want DecodeError", err)
			}
			if decodeErr.Kind != kind {
				t.Errorf("DecodeError.Kind = %s, want %s", decodeErr.Kind, kind)
			}

			_, err = EncodeResponse(kind, nil)
			if !errors.As(err, &decodeErr) {
				t.Fatalf("EncodeResponse err = %v, want DecodeError", err)
			}
		})
	}
}

func TestDecodeResponseBadRaw(t *testing.T) {
	tests := []struct {
		name string
		kind CardKind
		raw  interface{}
	}{
		{"mcq string", KindSimpleMCQ, "2"},
		{"fill number", KindFillInTheBlanks, 3.0},
		{"match scalar", KindMatchTheFollowing, 1},
		{"match mixed list", KindMatchTheFollowing, []interface{}{1.0, "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeResponse(tt.kind, tt.raw); err == nil {
				t.Errorf("DecodeResponse(%s, %v) succeeded, want error", tt.kind, tt.raw)
			}
		})
	}
}

func TestDecodeContentRoundTrip(t *testing.T) {
	card := &Card{}
	if err := card.SetContent(&SimpleMCQContent{
		Question:      "2+2?",
		Options:       []string{"3", "4", "5"},
		CorrectAnswer: 1,
	}); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if card.Kind != KindSimpleMCQ {
		t.Fatalf("SetContent kind = %s, want %s", card.Kind, KindSimpleMCQ)
	}

	content, err := card.DecodeContent()
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	mcq, ok := content.(*SimpleMCQContent)
	if !ok {
		t.Fatalf("content type = %T", content)
	}
	if mcq.CorrectAnswer != 1 || len(mcq.Options) != 3 {
		t.Errorf("decoded content mismatch: %+v", mcq)
	}
}

func TestDecodeContentUnknownKind(t *testing.T) {
	card := &Card{Kind: "Hologram", Content: []byte(`{}`)}
	if _, err := card.DecodeContent(); err == nil {
		t.Fatal("expected error for unknown card kind")
	}
}
