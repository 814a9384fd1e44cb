package answer

import "strings"

const maxFollowups = 3

// Followups suggests up to three follow-up questions, keyed first on the
// shape of the question, then on notable content in the answer.
func Followups(question, answerText string) []string {
	var out []string
	q := strings.ToLower(question)

	switch {
	case containsAny(q, "what is", "define", "什么是", "定义"):
		out = append(out,
			"What are the applications of this concept?",
			"Which experiments in the course relate to it?")
	case containsAny(q, "how do", "how to", "how can", "如何", "怎样"):
		out = append(out,
			"What is the principle behind this method?",
			"What should be watched out for when applying it?")
	case containsAny(q, "why", "为什么"):
		out = append(out,
			"Where does this show up in practice?",
			"How did the related theory develop?")
	}

	answer := strings.ToLower(answerText)
	if containsAny(answer, "experiment", "实验") {
		out = append(out, "What are the concrete steps of this experiment?")
	}
	if containsAny(answer, "formula", "equation", "公式", "方程") {
		out = append(out, "How is this formula derived?")
	}
	if containsAny(answer, "application", "应用") {
		out = append(out, "What other practical applications are there?")
	}

	if len(out) > maxFollowups {
		out = out[:maxFollowups]
	}
	return out
}

// clarifyingFollowups replaces topic followups when confidence is too low to
// persist the answer.
func clarifyingFollowups() []string {
	return []string{
		"Which course materials should I look at for this?",
		"What are the key concepts behind this question?",
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
