package matchscore

// Label 给出面向用户的分数标签。原因码优先于数值映射：
// 带原因码的记录分数恒为 0，但展示的是引导动作而不是 "Poor"。
func (r Record) Label() string {
	switch r.Reason {
	case ReasonNoResume:
		return "Upload Resume"
	case ReasonUserNotFound:
		return "Complete Setup"
	case ReasonNoData:
		return "Complete Profile"
	case ReasonAuthError:
		return "Login Required"
	case ReasonAPIError, ReasonError:
		return "Try Again"
	}

	switch {
	case r.Score >= 80:
		return "Excellent"
	case r.Score >= 60:
		return "Good"
	case r.Score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// ColorClass 返回前端用的颜色类名，原因码统一用 needs-action。
func (r Record) ColorClass() string {
	if r.Reason != "" {
		return "score-needs-action"
	}

	switch {
	case r.Score >= 80:
		return "score-excellent"
	case r.Score >= 60:
		return "score-good"
	case r.Score >= 40:
		return "score-fair"
	default:
		return "score-poor"
	}
}
