package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"NordicIngest/internal/domain"
)

func TestClassifyKeywords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		title string
		text  string
		want  domain.DocumentType
	}{
		{
			name:  "english quarterly",
			title: "Interim report Q2 2025",
			want:  domain.TypeQuarterlyReport,
		},
		{
			name:  "swedish quarterly",
			title: "Delårsrapport januari-juni 2025",
			want:  domain.TypeQuarterlyReport,
		},
		{
			name:  "annual report",
			title: "Annual Report 2024 published",
			want:  domain.TypeAnnualReport,
		},
		{
			name:  "swedish annual",
			title: "Årsredovisning 2024",
			want:  domain.TypeAnnualReport,
		},
		{
			name:  "corporate action",
			title: "Completes acquisition of Nordic Widgets AB",
			want:  domain.TypeCorporateAction,
		},
		{
			name:  "swedish corporate action",
			title: "Bolaget köper fastighetsportfölj i Malmö",
			want:  domain.TypeCorporateAction,
		},
		{
			name:  "governance",
			title: "Notice of Annual General Meeting",
			text:  "The board proposes a new nomination committee.",
			want:  domain.TypeGovernance,
		},
		{
			name:  "swedish governance",
			title: "Kallelse till extra bolagsstämma",
			want:  domain.TypeGovernance,
		},
		{
			name:  "press release fallback",
			title: "New product launch in Finland",
			text:  "Opening a flagship store in Helsinki.",
			want:  domain.TypePressRelease,
		},
		{
			name:  "keyword in body text",
			title: "Information till aktieägarna",
			text:  "Rapporten för fjärde kvartalet publiceras i februari.",
			want:  domain.TypeQuarterlyReport,
		},
	}

	c := NewKeywordClassifier()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.Classify(tc.title, tc.text))
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier()

	// a quarterly report that mentions the board is still a quarterly report
	got := c.Classify("Q3 interim report", "The board approved the report.")
	assert.Equal(t, domain.TypeQuarterlyReport, got)

	// annual beats corporate action
	got = c.Classify("Annual report 2024", "Includes a note on the merger.")
	assert.Equal(t, domain.TypeAnnualReport, got)
}
