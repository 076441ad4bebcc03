package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"syllabuscal/internal/model"
)

// typeRules are matched in order; the first hit wins. "No class" therefore
// resolves to session, because "class" is tested before "no class".
var typeRules = []struct {
	re  *regexp.Regexp
	typ model.EventType
}{
	{regexp.MustCompile(`lecture|class|session`), model.TypeSession},
	{regexp.MustCompile(`exam|midterm|final`), model.TypeExam},
	{regexp.MustCompile(`quiz`), model.TypeQuiz},
	{regexp.MustCompile(`holiday|break|no class`), model.TypeHoliday},
	{regexp.MustCompile(`project`), model.TypeProject},
	{regexp.MustCompile(`assignment|hw|homework`), model.TypeAssignment},
	{regexp.MustCompile(`reading`), model.TypeReading},
	{regexp.MustCompile(`deadline|withdraw`), model.TypeDeadline},
}

// MapType resolves a free-form label into a category. Anything unmatched,
// including the empty label, is TypeOther.
func MapType(label string) model.EventType {
	s := cases.Fold().String(strings.TrimSpace(label))
	if s == "" {
		return model.TypeOther
	}
	for _, r := range typeRules {
		if r.re.MatchString(s) {
			return r.typ
		}
	}
	return model.TypeOther
}
