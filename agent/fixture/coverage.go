package fixture

import (
	"fmt"
	"strconv"
	"strings"
)

type Coverage struct {
	Covered       bool    `json:"covered"`
	CopayEstimate float64 `json:"copay_estimate"`
	Notes         string  `json:"notes,omitempty"`
}

// ProcedureCode maps an appointment type such as "Root Canal" to its CDT code.
func (c *Catalog) ProcedureCode(appointmentType string) string {
	normalized := strings.ToLower(strings.TrimSpace(appointmentType))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if code, ok := c.procedureCodes[normalized]; ok {
		return code
	}
	return c.defaultProcedure
}

func (c *Catalog) CashEstimate(procedureCode string) float64 {
	if v, ok := c.cashPay[procedureCode]; ok {
		return v
	}
	return c.defaultCash
}

func (c *Catalog) CheckCoverage(payer, plan, procedureCode string) Coverage {
	coverages, ok := c.plans[newPlanKey(payer, plan)]
	if !ok {
		return Coverage{
			Covered:       false,
			CopayEstimate: 0,
			Notes: fmt.Sprintf("No coverage found for %s %s. Cash-pay estimate: $%s",
				payer, plan, strconv.FormatFloat(c.CashEstimate(procedureCode), 'f', -1, 64)),
		}
	}

	cov, ok := coverages[procedureCode]
	if !ok {
		return Coverage{
			Covered:       false,
			CopayEstimate: 0,
			Notes:         fmt.Sprintf("Procedure %s not covered", procedureCode),
		}
	}
	return Coverage{Covered: cov.Covered, CopayEstimate: cov.Copay, Notes: cov.Notes}
}
