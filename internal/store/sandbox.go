package store

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

var _ Tx = (*Sandbox)(nil)

// Sandbox is a Tx whose writes are held in memory over a base Reader. Reads
// return the base rows with every staged write applied, so a dry run can
// replay the mutating path and see the state each phase would leave behind.
// Nothing is written to the base.
//
// Memory grows with the number of staged writes, not with the table size.
type Sandbox struct {
	base Reader

	mu        sync.RWMutex
	companies map[int64]*company.Company
	rounds    map[int64]*company.FundingRound
	deleted   map[string]map[int64]bool
	// moved maps a parent id to the parent its child rows were re-pointed at.
	moved map[string]map[int64]int64
	// dropped holds parent ids whose child rows were deleted by reference.
	dropped map[string]map[int64]bool
	// delta adjusts the base child row count of a parent id.
	delta   map[string]map[int64]int
	removed map[string]int
	logSeq  int64
}

// NewSandbox stages writes over base.
func NewSandbox(base Reader) *Sandbox {
	return &Sandbox{
		base:      base,
		companies: map[int64]*company.Company{},
		rounds:    map[int64]*company.FundingRound{},
		deleted:   map[string]map[int64]bool{},
		moved:     map[string]map[int64]int64{},
		dropped:   map[string]map[int64]bool{},
		delta:     map[string]map[int64]int{},
		removed:   map[string]int{},
	}
}

func nested[V any](m map[string]map[int64]V, table string) map[int64]V {
	inner, ok := m[table]
	if !ok {
		inner = map[int64]V{}
		m[table] = inner
	}
	return inner
}

// fillPage pages base until limit visible rows are collected or base is
// exhausted. Hidden rows are skipped and the cursor advances over them.
func fillPage[T any](afterID int64, limit int, id func(T) int64,
	page func(afterID int64) ([]T, error), visible func([]T) ([]T, error)) ([]T, error) {
	var out []T
	for len(out) < limit {
		rows, err := page(afterID)
		if err != nil {
			return nil, err
		}
		vis, err := visible(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vis...)
		if len(rows) < limit {
			break
		}
		afterID = id(rows[len(rows)-1])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// parentLocked follows re-parent moves from id to where its rows point now.
func (s *Sandbox) parentLocked(table string, id int64) int64 {
	moves := s.moved[table]
	for range len(moves) + 1 {
		next, ok := moves[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

func (s *Sandbox) companyLocked(base company.Company) (company.Company, bool) {
	if s.deleted[TableCompanies][base.ID] {
		return company.Company{}, false
	}
	out := base
	if c, ok := s.companies[base.ID]; ok {
		out = *c.Clone()
	}
	out.RoundCount = base.RoundCount + s.delta[TableRounds][base.ID]
	out.EnrichmentCount = base.EnrichmentCount + s.delta[TableEnrichments][base.ID]
	return out, true
}

func (s *Sandbox) roundLocked(base company.FundingRound) (company.FundingRound, bool) {
	if s.deleted[TableRounds][base.ID] {
		return company.FundingRound{}, false
	}
	out := base
	if r, ok := s.rounds[base.ID]; ok {
		out = *r.Clone()
	}
	if out.CompanyID != nil {
		pid := s.parentLocked(TableRounds, *out.CompanyID)
		if s.dropped[TableRounds][pid] {
			return company.FundingRound{}, false
		}
		out.CompanyID = &pid
	}
	return out, true
}

func (s *Sandbox) visibleCompanies(rows []company.Company) ([]company.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]company.Company, 0, len(rows))
	for _, c := range rows {
		if v, ok := s.companyLocked(c); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Sandbox) visibleRounds(rows []company.FundingRound) ([]company.FundingRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]company.FundingRound, 0, len(rows))
	for _, r := range rows {
		if v, ok := s.roundLocked(r); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Sandbox) PageCompanyNames(ctx context.Context, afterID int64, limit int) ([]company.NameRef, error) {
	return fillPage(afterID, limit,
		func(n company.NameRef) int64 { return n.ID },
		func(after int64) ([]company.NameRef, error) { return s.base.PageCompanyNames(ctx, after, limit) },
		func(rows []company.NameRef) ([]company.NameRef, error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			out := make([]company.NameRef, 0, len(rows))
			for _, n := range rows {
				if s.deleted[TableCompanies][n.ID] {
					continue
				}
				if c, ok := s.companies[n.ID]; ok {
					n.Name = c.Name
				}
				out = append(out, n)
			}
			return out, nil
		})
}

func (s *Sandbox) PageCompanies(ctx context.Context, afterID int64, limit int) ([]company.Company, error) {
	return fillPage(afterID, limit,
		func(c company.Company) int64 { return c.ID },
		func(after int64) ([]company.Company, error) { return s.base.PageCompanies(ctx, after, limit) },
		s.visibleCompanies)
}

func (s *Sandbox) GetCompanies(ctx context.Context, ids []int64) ([]company.Company, error) {
	rows, err := s.base.GetCompanies(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.visibleCompanies(rows)
}

func (s *Sandbox) GetCompany(ctx context.Context, id int64) (*company.Company, error) {
	c, err := s.base.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	v, ok := s.companyLocked(*c)
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "company %d", id)
	}
	return &v, nil
}

func (s *Sandbox) PageRounds(ctx context.Context, afterID int64, limit int) ([]company.FundingRound, error) {
	return fillPage(afterID, limit,
		func(r company.FundingRound) int64 { return r.ID },
		func(after int64) ([]company.FundingRound, error) { return s.base.PageRounds(ctx, after, limit) },
		s.visibleRounds)
}

func (s *Sandbox) GetRound(ctx context.Context, id int64) (*company.FundingRound, error) {
	r, err := s.base.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	v, ok := s.roundLocked(*r)
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "round %d", id)
	}
	return &v, nil
}

func (s *Sandbox) GetRounds(ctx context.Context, ids []int64) ([]company.FundingRound, error) {
	rows, err := s.base.GetRounds(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.visibleRounds(rows)
}

// PageChildRefs hides parents whose rows were all moved, deleted by
// reference or deleted one by one.
func (s *Sandbox) PageChildRefs(ctx context.Context, ref ChildRef, afterID int64, limit int) ([]int64, error) {
	return fillPage(afterID, limit,
		func(id int64) int64 { return id },
		func(after int64) ([]int64, error) { return s.base.PageChildRefs(ctx, ref, after, limit) },
		func(ids []int64) ([]int64, error) { return s.liveRefs(ctx, ref, ids) })
}

func (s *Sandbox) liveRefs(ctx context.Context, ref ChildRef, ids []int64) ([]int64, error) {
	s.mu.RLock()
	var check []int64
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.moved[ref.Table][id]; ok || s.dropped[ref.Table][id] {
			continue
		}
		if s.delta[ref.Table][id] < 0 {
			check = append(check, id)
		}
		out = append(out, id)
	}
	s.mu.RUnlock()
	if len(check) == 0 {
		return out, nil
	}

	need := make(map[int64]bool, len(check))
	for _, id := range check {
		need[id] = true
	}
	counts, err := s.CountByRef(ctx, ref, check)
	if err != nil {
		return nil, err
	}
	live := out[:0]
	for _, id := range out {
		if need[id] && counts[id] == 0 {
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

func (s *Sandbox) ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	found, err := s.base.ExistingCompanyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range found {
		if s.deleted[TableCompanies][id] {
			delete(found, id)
		}
	}
	return found, nil
}

func (s *Sandbox) CountByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (map[int64]int, error) {
	base, err := s.base.CountByRef(ctx, ref, parentIDs)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]int, len(parentIDs))
	for _, id := range parentIDs {
		if s.dropped[ref.Table][id] {
			continue
		}
		if n := base[id] + s.delta[ref.Table][id]; n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (s *Sandbox) CountCompanies(ctx context.Context) (int, error) {
	n, err := s.base.CountCompanies(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return n - s.removed[TableCompanies], nil
}

func (s *Sandbox) CountRounds(ctx context.Context) (int, error) {
	n, err := s.base.CountRounds(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return n - s.removed[TableRounds], nil
}

func (s *Sandbox) UpdateCompany(_ context.Context, c *company.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[TableCompanies][c.ID] {
		return eris.Wrapf(ErrNotFound, "company %d", c.ID)
	}
	s.companies[c.ID] = c.Clone()
	return nil
}

func (s *Sandbox) UpdateRound(_ context.Context, r *company.FundingRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[TableRounds][r.ID] {
		return eris.Wrapf(ErrNotFound, "round %d", r.ID)
	}
	s.rounds[r.ID] = r.Clone()
	return nil
}

func (s *Sandbox) ReparentChildren(ctx context.Context, ref ChildRef, fromID, toID int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	counts, err := s.CountByRef(ctx, ref, []int64{fromID})
	if err != nil {
		return 0, err
	}
	n := counts[fromID]

	s.mu.Lock()
	defer s.mu.Unlock()
	nested(s.moved, ref.Table)[fromID] = toID
	d := nested(s.delta, ref.Table)
	d[fromID] -= n
	d[toID] += n
	return int64(n), nil
}

func (s *Sandbox) DeleteCompany(ctx context.Context, id int64) error {
	if _, err := s.GetCompany(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCompanyLocked(id)
	return nil
}

func (s *Sandbox) DeleteRound(ctx context.Context, id int64) error {
	r, err := s.GetRound(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteRoundLocked(r)
	return nil
}

func (s *Sandbox) deleteCompanyLocked(id int64) {
	nested(s.deleted, TableCompanies)[id] = true
	s.removed[TableCompanies]++
}

func (s *Sandbox) deleteRoundLocked(r *company.FundingRound) {
	nested(s.deleted, TableRounds)[r.ID] = true
	s.removed[TableRounds]++
	if r.CompanyID != nil {
		nested(s.delta, TableRounds)[*r.CompanyID]--
	}
}

func (s *Sandbox) DeleteByRef(ctx context.Context, ref ChildRef, parentIDs []int64) (int64, error) {
	if err := checkChildRef(ref); err != nil {
		return 0, err
	}
	counts, err := s.CountByRef(ctx, ref, parentIDs)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := nested(s.dropped, ref.Table)
	var total int64
	for _, id := range parentIDs {
		if dropped[id] {
			continue
		}
		dropped[id] = true
		total += int64(counts[id])
		s.removed[ref.Table] += counts[id]
	}
	return total, nil
}

func (s *Sandbox) DeleteRows(ctx context.Context, table string, ids []int64) (int64, error) {
	switch table {
	case TableCompanies:
		cs, err := s.GetCompanies(ctx, ids)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range cs {
			s.deleteCompanyLocked(c.ID)
		}
		return int64(len(cs)), nil
	case TableRounds:
		rs, err := s.GetRounds(ctx, ids)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range rs {
			s.deleteRoundLocked(&rs[i])
		}
		return int64(len(rs)), nil
	default:
		return 0, eris.Errorf("sandbox: delete rows: unsupported table %s", table)
	}
}

func (s *Sandbox) SetValues(ctx context.Context, table, column string, updates []FieldUpdate) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	values := make(map[int64]string, len(updates))
	ids := make([]int64, 0, len(updates))
	for _, u := range updates {
		if _, ok := values[u.ID]; !ok {
			ids = append(ids, u.ID)
		}
		values[u.ID] = u.Value
	}
	return s.rewrite(ctx, table, ids,
		func(c *company.Company) error { return setCompanyText(c, column, values[c.ID]) },
		func(r *company.FundingRound) error { return setRoundText(r, column, values[r.ID]) })
}

func (s *Sandbox) NullColumn(ctx context.Context, table, column string, ids []int64) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	return s.rewrite(ctx, table, ids,
		func(c *company.Company) error { return nullCompanyColumn(c, column) },
		func(r *company.FundingRound) error { return nullRoundColumn(r, column) })
}

// rewrite loads the visible rows of ids, edits each and stages the result.
func (s *Sandbox) rewrite(ctx context.Context, table string, ids []int64,
	editCompany func(c *company.Company) error, editRound func(r *company.FundingRound) error) (int64, error) {
	switch table {
	case TableCompanies:
		cs, err := s.GetCompanies(ctx, ids)
		if err != nil {
			return 0, err
		}
		for i := range cs {
			if err := editCompany(&cs[i]); err != nil {
				return 0, err
			}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range cs {
			s.companies[cs[i].ID] = cs[i].Clone()
		}
		return int64(len(cs)), nil
	case TableRounds:
		rs, err := s.GetRounds(ctx, ids)
		if err != nil {
			return 0, err
		}
		for i := range rs {
			if err := editRound(&rs[i]); err != nil {
				return 0, err
			}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range rs {
			s.rounds[rs[i].ID] = rs[i].Clone()
		}
		return int64(len(rs)), nil
	default:
		return 0, eris.Errorf("sandbox: unsupported table %s", table)
	}
}

// InsertMergeLog numbers the entry; staged entries are not kept.
func (s *Sandbox) InsertMergeLog(_ context.Context, e *model.MergeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeq++
	e.ID = s.logSeq
	e.CreatedAt = time.Now().UTC()
	return nil
}

// SetTimeout is a no-op: the sandbox holds no transaction to bound.
func (s *Sandbox) SetTimeout(context.Context, time.Duration) error { return nil }

func setCompanyText(c *company.Company, column, v string) error {
	switch column {
	case "country":
		c.Country = v
	case "industry":
		c.Industry = v
	default:
		return eris.Errorf("sandbox: %s.%s is not a text column", TableCompanies, column)
	}
	return nil
}

func setRoundText(r *company.FundingRound, column, v string) error {
	switch column {
	case "stage":
		r.Stage = v
	case "sector_normalized":
		r.SectorNormalized = v
	default:
		return eris.Errorf("sandbox: %s.%s is not a text column", TableRounds, column)
	}
	return nil
}

func nullCompanyColumn(c *company.Company, column string) error {
	switch column {
	case "country":
		c.Country = ""
	case "industry":
		c.Industry = ""
	case "founded_year":
		c.FoundedYear = nil
	case "employee_count":
		c.EmployeeCount = nil
	case "total_raised_usd":
		c.TotalRaisedUSD = nil
	case "quality_score":
		c.QualityScore = nil
	default:
		return eris.Errorf("sandbox: cannot null %s.%s", TableCompanies, column)
	}
	return nil
}

func nullRoundColumn(r *company.FundingRound, column string) error {
	switch column {
	case "stage":
		r.Stage = ""
	case "sector_normalized":
		r.SectorNormalized = ""
	case "amount":
		r.Amount = nil
	case "amount_usd":
		r.AmountUSD = nil
	case "announced_date":
		r.AnnouncedDate = nil
	default:
		return eris.Errorf("sandbox: cannot null %s.%s", TableRounds, column)
	}
	return nil
}
