package knowledge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/levelapp/funnel/internal/domain"
)

// FormatEntry renders an entry's content as a prompt block. Content of a
// section this build does not know renders as the empty string.
func FormatEntry(entry *domain.KnowledgeEntry) string {
	if entry == nil || entry.Content == nil {
		return ""
	}

	switch c := entry.Content.(type) {
	case domain.PricingContent:
		return formatPricing(c)
	case domain.FAQContent:
		return formatFAQ(c)
	case domain.CompanyInfoContent:
		return formatCompanyInfo(c)
	case domain.CaseStudyContent:
		return formatCaseStudies(c)
	case domain.ProcessContent:
		return formatProcess(c)
	case domain.CustomContextContent:
		return formatCustomContext(c)
	case domain.UnknownContent:
		return ""
	default:
		return ""
	}
}

func formatPricing(c domain.PricingContent) string {
	lines := []string{"## TARIFICATION\n"}

	if len(c.Plans) > 0 {
		lines = append(lines, "### Plans disponibles:")
		for _, plan := range c.Plans {
			lines = append(lines, fmt.Sprintf("- **%s** (%d€): %s", plan.Name, plan.BasePrice, plan.Description))
			if len(plan.Features) > 0 {
				lines = append(lines, "  Inclus: "+strings.Join(plan.Features, ", "))
			}
		}
		lines = append(lines, "")
	}

	if len(c.Packs) > 0 {
		lines = append(lines, "### Packs additionnels:")
		for _, pack := range c.Packs {
			lines = append(lines, fmt.Sprintf("- **%s** (%d€): %s", pack.Name, pack.Price, pack.Description))
		}
		lines = append(lines, "")
	}

	if len(c.Urgency) > 0 {
		lines = append(lines, "### Options d'urgence:")
		for _, opt := range c.Urgency {
			lines = append(lines, fmt.Sprintf("- %s: %s (x%s)", opt.Label, opt.Description, formatMultiplier(opt.Multiplier)))
		}
		lines = append(lines, "")
	}

	if len(c.Maintenance) > 0 {
		lines = append(lines, "### Options de maintenance:")
		for _, opt := range c.Maintenance {
			lines = append(lines, fmt.Sprintf("- %s: %s (%d€/mois)", opt.Label, opt.Description, opt.MonthlyPrice))
		}
		lines = append(lines, "")
	}

	if len(c.ExtraScreens) > 0 {
		lines = append(lines, "### Prix des écrans supplémentaires:")
		for _, lp := range c.ExtraScreens {
			lines = append(lines, fmt.Sprintf("- Écran %s: %d€", lp.Label, lp.Price))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func formatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func formatFAQ(c domain.FAQContent) string {
	lines := []string{"## FAQ\n"}
	for _, item := range c.Items {
		lines = append(lines,
			"**Q: "+item.Question+"**",
			"R: "+item.Answer+"\n",
		)
	}
	return strings.Join(lines, "\n")
}

func formatCompanyInfo(c domain.CompanyInfoContent) string {
	lines := []string{"## À PROPOS DE LEVEL APP\n"}

	if c.Name != "" {
		lines = append(lines, "**Nom:** "+c.Name)
	}
	if c.Description != "" {
		lines = append(lines, "**Description:** "+c.Description)
	}
	if c.Mission != "" {
		lines = append(lines, "**Mission:** "+c.Mission)
	}
	if len(c.Values) > 0 {
		lines = append(lines, "**Valeurs:** "+strings.Join(c.Values, ", "))
	}
	if c.Contact != (domain.CompanyContact{}) {
		lines = append(lines, "**Contact:**")
		if c.Contact.Email != "" {
			lines = append(lines, "  - Email: "+c.Contact.Email)
		}
		if c.Contact.Phone != "" {
			lines = append(lines, "  - Téléphone: "+c.Contact.Phone)
		}
		if c.Contact.Address != "" {
			lines = append(lines, "  - Adresse: "+c.Contact.Address)
		}
	}

	return strings.Join(lines, "\n")
}

func formatCaseStudies(c domain.CaseStudyContent) string {
	lines := []string{"## ÉTUDES DE CAS\n"}

	for _, p := range c.Projects {
		lines = append(lines,
			fmt.Sprintf("### %s (%s)", p.Name, p.Type),
			p.ShortDesc,
		)
		if p.Problem != "" {
			lines = append(lines, "**Problème:** "+p.Problem)
		}
		if p.Solution != "" {
			lines = append(lines, "**Solution:** "+p.Solution)
		}
		if len(p.Results) > 0 {
			lines = append(lines, "**Résultats:** "+strings.Join(p.Results, ", "))
		}
		if len(p.Tags) > 0 {
			lines = append(lines, "**Technologies:** "+strings.Join(p.Tags, ", "))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func formatProcess(c domain.ProcessContent) string {
	lines := []string{"## NOTRE PROCESSUS\n"}

	for i, step := range c.Steps {
		lines = append(lines,
			fmt.Sprintf("%d. **%s**", i+1, step.Title),
			"   "+step.Description,
		)
		if step.Duration != "" {
			lines = append(lines, "   Durée: "+step.Duration)
		}
	}

	return strings.Join(lines, "\n")
}

func formatCustomContext(c domain.CustomContextContent) string {
	lines := []string{"## CONTEXTE ADDITIONNEL\n"}

	if c.Instructions != "" {
		lines = append(lines, "**Instructions:** "+c.Instructions+"\n")
	}
	if c.Text != "" {
		lines = append(lines, c.Text)
	}

	return strings.Join(lines, "\n")
}
