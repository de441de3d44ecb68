package model

import "strings"

// ResultBreakdown 结果页用的按正确性聚合
type ResultBreakdown struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// SimpleMCQResponseCounts 每个选项的作答人数，向量长度固定为选项数
func SimpleMCQResponseCounts(content *SimpleMCQContent, responses map[string]CardResponse) []int {
	counts := make([]int, len(content.Options))
	for _, response := range responses {
		r, ok := response.(SimpleMCQResponse)
		if !ok || r.SelectedOption == nil {
			continue
		}
		if *r.SelectedOption >= 0 && *r.SelectedOption < len(counts) {
			counts[*r.SelectedOption]++
		}
	}
	return counts
}

// YesNoResponseCounts 固定三格：yes / no / maybe
func YesNoResponseCounts(responses map[string]CardResponse) []int {
	counts := make([]int, 3)
	for _, response := range responses {
		r, ok := response.(YesNoResponse)
		if !ok || r.SelectedOption == nil {
			continue
		}
		if *r.SelectedOption >= 0 && *r.SelectedOption < len(counts) {
			counts[*r.SelectedOption]++
		}
	}
	return counts
}

// TextResponseCount 非空文本作答数，不在此处判断正确性
func TextResponseCount(responses map[string]CardResponse) int {
	count := 0
	for _, response := range responses {
		switch r := response.(type) {
		case FillInTheBlanksResponse:
			if r.Answer != "" {
				count++
			}
		case ShortAnswerResponse:
			if r.Answer != "" {
				count++
			}
		}
	}
	return count
}

// TextAnswerCorrect 大小写不敏感的精确匹配
func TextAnswerCorrect(answer, expected string) bool {
	return strings.EqualFold(answer, expected)
}

// DeshufflePairs 把打乱坐标系里记录的连接列表换回原始配对坐标系。
// shuffle 的位置 s 保存展示在槽位 s 的原始右项下标；
// 结果位置 i 为 connected[i] 在 shuffle 中的下标，未连接(-1)保持 -1。
func DeshufflePairs(connected, shuffle []int) []int {
	out := make([]int, len(connected))
	for i, c := range connected {
		out[i] = UnconnectedPair
		if c == UnconnectedPair {
			continue
		}
		for s, orig := range shuffle {
			if orig == c {
				out[i] = s
				break
			}
		}
	}
	return out
}

// MatchPairsCorrect 还原后的连接列表等于恒等排列才算全对
func MatchPairsCorrect(deshuffled []int) bool {
	for i, v := range deshuffled {
		if v != i {
			return false
		}
	}
	return len(deshuffled) > 0
}

// CardBreakdown 计算一张卡片的对/错/未答。activeCount 是实时 roster
// 数量而非快照，roster 缩小后未答数可为零，属预期行为。
func CardBreakdown(content CardContent, responses map[string]CardResponse, activeCount int) ResultBreakdown {
	correct, incorrect := 0, 0

	for _, response := range responses {
		switch c := content.(type) {
		case *SimpleMCQContent:
			r, ok := response.(SimpleMCQResponse)
			if !ok || r.SelectedOption == nil {
				continue
			}
			if *r.SelectedOption == c.CorrectAnswer {
				correct++
			} else {
				incorrect++
			}
		case *FillInTheBlanksContent:
			r, ok := response.(FillInTheBlanksResponse)
			if !ok || r.Answer == "" {
				continue
			}
			if TextAnswerCorrect(r.Answer, c.Answer) {
				correct++
			} else {
				incorrect++
			}
		case *ShortAnswerContent:
			r, ok := response.(ShortAnswerResponse)
			if !ok || r.Answer == "" {
				continue
			}
			if TextAnswerCorrect(r.Answer, c.Answer) {
				correct++
			} else {
				incorrect++
			}
		case *MatchTheFollowingContent:
			r, ok := response.(MatchTheFollowingResponse)
			if !ok {
				continue
			}
			if MatchPairsCorrect(r.ConnectedPairs) {
				correct++
			} else {
				incorrect++
			}
		}
	}

	unanswered := activeCount - correct - incorrect
	if unanswered < 0 {
		unanswered = 0
	}

	return ResultBreakdown{Correct: correct, Incorrect: incorrect, Unanswered: unanswered}
}
