// internal/rules/resolver.go
package rules

import (
	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Entity resolution.
 *
 * Determines which configured entity owns each raw record: exact match on
 * country and company code first (cheap filter), then anchored regexp
 * match of the entity's case-ID pattern against the record's Case_ID
 * value.
 *
 * Zero matches: the record is tagged Unresolved, excluded from rule
 * processing, and retained in the final report. This signals a data
 * quality or configuration gap, not a failure.
 *
 * Multiple matches: AmbiguousEntityError aborting the whole run before
 * any rule processing starts. Two entities claiming the same record means
 * the ruleset itself cannot be trusted; first-match precedence would
 * silently misroute financial records.
 */

// Partition maps entity names to the row indices they own.
type Partition struct {
	ByEntity   map[string][]int
	Unresolved []int
}

// ResolveRecord returns the single ruleset claiming the record, nil when
// none match, and AmbiguousEntityError when several do.
// Pure function of (record, ruleset set).
func ResolveRecord(rec types.Record, rulesets []*types.EntityRuleset) (*types.EntityRuleset, error) {
	country := AsString(rec[types.ColCountry])
	company := AsString(rec[types.ColCompanyCode])
	caseID := AsString(rec[types.ColCaseID])

	var matches []*types.EntityRuleset
	for _, rs := range rulesets {
		if rs.Country != country || rs.CompanyCode != company {
			continue
		}
		if rs.CaseIDPattern == nil || !rs.CaseIDPattern.MatchString(caseID) {
			continue
		}
		matches = append(matches, rs)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, &types.AmbiguousEntityError{CaseID: caseID, Entities: names}
	}
}

// Resolve partitions the dataset across entities, writing each row's
// Entity tag. Ambiguity is fatal and returns before any tagging is
// relied upon.
func Resolve(ds *dataset.Dataset, rulesets []*types.EntityRuleset, log *zap.Logger) (Partition, error) {
	part := Partition{ByEntity: make(map[string][]int, len(rulesets))}
	ds.AddColumn(types.ColEntity)

	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		rs, err := ResolveRecord(row, rulesets)
		if err != nil {
			return Partition{}, err
		}
		if rs == nil {
			row[types.ColEntity] = types.UnresolvedTag
			part.Unresolved = append(part.Unresolved, i)
			log.Warn("record resolved to no entity",
				zap.Int("row", i),
				zap.String("country", AsString(row[types.ColCountry])),
				zap.String("company_code", AsString(row[types.ColCompanyCode])),
				zap.String("case_id", AsString(row[types.ColCaseID])))
			continue
		}
		row[types.ColEntity] = rs.Name
		part.ByEntity[rs.Name] = append(part.ByEntity[rs.Name], i)
	}

	return part, nil
}
