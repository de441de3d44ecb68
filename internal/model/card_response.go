package model

import "fmt"

// UnconnectedPair 表示 match 卡片中左项尚未连接
const UnconnectedPair = -1

// CardResponse 每种卡片类型对应一个响应变体，只携带该类型需要的答案负载。
// “尚未作答”用条目缺失表达，不用空响应表达。
type CardResponse interface {
	ResponseKind() CardKind
}

type SimpleMCQResponse struct {
	SelectedOption *int `json:"selectedOption"`
}

func (SimpleMCQResponse) ResponseKind() CardKind { return KindSimpleMCQ }

type FillInTheBlanksResponse struct {
	Answer string `json:"answer"`
}

func (FillInTheBlanksResponse) ResponseKind() CardKind { return KindFillInTheBlanks }

type MatchTheFollowingResponse struct {
	// ConnectedPairs 位置 i 保存左项 i 连接到的右项下标，未连接为 -1
	ConnectedPairs []int `json:"connectedPairs"`
}

func (MatchTheFollowingResponse) ResponseKind() CardKind { return KindMatchTheFollowing }

type ShortAnswerResponse struct {
	Answer string `json:"answer"`
}

func (ShortAnswerResponse) ResponseKind() CardKind { return KindShortAnswer }

type YesNoResponse struct {
	// SelectedOption 0=yes 1=no 2=maybe
	SelectedOption *int `json:"selectedOption"`
}

func (YesNoResponse) ResponseKind() CardKind { return KindYesNo }

type ThisThatResponse struct {
	// SelectedOption 0=A 1=B
	SelectedOption *int `json:"selectedOption"`
}

func (ThisThatResponse) ResponseKind() CardKind { return KindThisThat }

// DecodeError 表示某张卡片类型没有已知的响应编解码器
type DecodeError struct {
	Kind CardKind
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("no response codec for card kind %q", e.Kind)
}

// EncodeResponse 把类型化响应转换为实时树可存储的原始形态。
// 卡片的 Kind 是权威来源，负载本身不携带类型标记。
// 未作答（选项为 nil）返回 nil 值和 nil 错误，写入方应跳过该条目。
func EncodeResponse(kind CardKind, response CardResponse) (interface{}, error) {
	if response != nil && response.ResponseKind() != kind {
		return nil, fmt.Errorf("response kind %s does not match card kind %s", response.ResponseKind(), kind)
	}

	switch kind {
	case KindSimpleMCQ:
		r := response.(SimpleMCQResponse)
		if r.SelectedOption == nil {
			return nil, nil
		}
		return *r.SelectedOption, nil

	case KindYesNo:
		r := response.(YesNoResponse)
		if r.SelectedOption == nil {
			return nil, nil
		}
		return *r.SelectedOption, nil

	case KindThisThat:
		r := response.(ThisThatResponse)
		if r.SelectedOption == nil {
			return nil, nil
		}
		return *r.SelectedOption, nil

	case KindFillInTheBlanks:
		return response.(FillInTheBlanksResponse).Answer, nil

	case KindShortAnswer:
		return response.(ShortAnswerResponse).Answer, nil

	case KindMatchTheFollowing:
		return response.(MatchTheFollowingResponse).ConnectedPairs, nil

	default:
		return nil, &DecodeError{Kind: kind}
	}
}

// DecodeResponse 按卡片 Kind 把原始存储值还原成类型化响应。
// 原始值经过 JSON 传输，数字到达时是 float64。
func DecodeResponse(kind CardKind, raw interface{}) (CardResponse, error) {
	switch kind {
	case KindSimpleMCQ:
		n, err := rawInt(raw)
		if err != nil {
			return nil, err
		}
		return SimpleMCQResponse{SelectedOption: &n}, nil

	case KindYesNo:
		n, err := rawInt(raw)
		if err != nil {
			return nil, err
		}
		return YesNoResponse{SelectedOption: &n}, nil

	case KindThisThat:
		n, err := rawInt(raw)
		if err != nil {
			return nil, err
		}
		return ThisThatResponse{SelectedOption: &n}, nil

	case KindFillInTheBlanks:
		s, err := rawString(raw)
		if err != nil {
			return nil, err
		}
		return FillInTheBlanksResponse{Answer: s}, nil

	case KindShortAnswer:
		s, err := rawString(raw)
		if err != nil {
			return nil, err
		}
		return ShortAnswerResponse{Answer: s}, nil

	case KindMatchTheFollowing:
		pairs, err := rawIntSlice(raw)
		if err != nil {
			return nil, err
		}
		return MatchTheFollowingResponse{ConnectedPairs: pairs}, nil

	default:
		return nil, &DecodeError{Kind: kind}
	}
}

func rawInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer raw value, got %T", raw)
	}
}

func rawString(raw interface{}) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("expected string raw value, got %T", raw)
	}
	return s, nil
}

func rawIntSlice(raw interface{}) ([]int, error) {
	switch v := raw.(type) {
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out, nil
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, err := rawInt(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected integer list raw value, got %T", raw)
	}
}
