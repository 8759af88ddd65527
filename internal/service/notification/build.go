package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/notifier/internal/model"
)

// build turns query results into delivery items. Nothing is persisted here, so
// a failure leaves no partial output behind.
func (s *service) build(ctx context.Context, rule *model.NotificationRule, records []model.Record, now time.Time) ([]*model.DeliveryItem, error) {
	switch {
	case rule.Digest && rule.DynamicTargeting:
		return s.buildDynamicDigest(ctx, rule, records, now)
	case rule.Digest:
		return s.buildStaticDigest(ctx, rule, records, now)
	case rule.DynamicTargeting:
		return s.buildDynamicSingles(ctx, rule, records, now)
	default:
		return s.buildStaticSingles(ctx, rule, records, now)
	}
}

func (s *service) buildStaticDigest(ctx context.Context, rule *model.NotificationRule, records []model.Record, now time.Time) ([]*model.DeliveryItem, error) {
	addrs, err := s.staticAddresses(ctx, rule)
	if err != nil {
		return nil, err
	}

	var body strings.Builder
	for _, rec := range records {
		body.WriteString(s.renderBody(rule, rec))
	}
	subject := s.renderSubject(rule, records[0], len(records), "", now)
	return []*model.DeliveryItem{newItem(rule, subject, body.String(), addrs)}, nil
}

func (s *service) buildStaticSingles(ctx context.Context, rule *model.NotificationRule, records []model.Record, now time.Time) ([]*model.DeliveryItem, error) {
	addrs, err := s.staticAddresses(ctx, rule)
	if err != nil {
		return nil, err
	}

	items := make([]*model.DeliveryItem, 0, len(records))
	for _, rec := range records {
		subject := s.renderSubject(rule, rec, 1, "", now)
		items = append(items, newItem(rule, subject, s.renderBody(rule, rec), addrs))
	}
	return items, nil
}

func (s *service) buildDynamicSingles(ctx context.Context, rule *model.NotificationRule, records []model.Record, now time.Time) ([]*model.DeliveryItem, error) {
	items := make([]*model.DeliveryItem, 0, len(records))
	for _, rec := range records {
		target, err := s.dynamicTarget(ctx, rule, rec)
		if err != nil {
			return nil, err
		}
		subject := s.renderSubject(rule, rec, 1, target.Name, now)
		items = append(items, newItem(rule, subject, s.renderBody(rule, rec), target.Addresses))
	}
	return items, nil
}

func (s *service) buildDynamicDigest(ctx context.Context, rule *model.NotificationRule, records []model.Record, now time.Time) ([]*model.DeliveryItem, error) {
	keyOf := func(rec model.Record) (Target, error) {
		return s.dynamicTarget(ctx, rule, rec)
	}
	render := func(rec model.Record) string {
		return s.renderBody(rule, rec)
	}

	var items []*model.DeliveryItem
	g := NewGrouper(records, keyOf, render)
	for g.Next() {
		group := g.Group()
		subject := s.renderSubject(rule, group.First, group.Count, group.Name, now)
		items = append(items, newItem(rule, subject, group.Body, group.Addresses))
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *service) staticAddresses(ctx context.Context, rule *model.NotificationRule) ([]string, error) {
	addrs, skipped, err := s.directory.StaticAddresses(ctx, rule.Targets)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		s.logger.Warn("rule targets no longer exist", "rule_id", rule.ID.String(), "targets", skipped)
	}
	return addrs, nil
}

func (s *service) dynamicTarget(ctx context.Context, rule *model.NotificationRule, rec model.Record) (Target, error) {
	value, err := rec.Field(rule.DynamicField)
	if err != nil {
		return Target{}, fmt.Errorf("rule %s dynamic target: %w", rule.ID, err)
	}
	target, err := s.directory.Target(ctx, value)
	if err != nil {
		return Target{}, fmt.Errorf("rule %s dynamic target: %w", rule.ID, err)
	}
	target.Addresses = dedupe(target.Addresses)
	return target, nil
}

func (s *service) renderBody(rule *model.NotificationRule, rec model.Record) string {
	r := RenderBody(rule.BodyTemplate, rec)
	s.logMisses(rule, "body", r.Misses)
	return r.Text
}

func (s *service) renderSubject(rule *model.NotificationRule, rec model.Record, count int, name string, now time.Time) string {
	r := RenderSubject(rule.SubjectTemplate, rec, SubjectData{
		ItemCount: count,
		Name:      name,
		Entity:    rule.EntityName,
		Now:       now,
	})
	s.logMisses(rule, "subject", r.Misses)
	return r.Text
}

func (s *service) logMisses(rule *model.NotificationRule, part string, misses []Miss) {
	for _, m := range misses {
		s.logger.Debug("template token left unreplaced",
			"rule_id", rule.ID.String(),
			"part", part,
			"token", m.Token,
			"reason", m.Err.Error(),
		)
	}
}

func newItem(rule *model.NotificationRule, subject, body string, addrs []string) *model.DeliveryItem {
	item := &model.DeliveryItem{
		Subject:          subject,
		Body:             body,
		Status:           model.DeliveryStatusToBeProcessed,
		DeliverySystemID: rule.DeliverySystemID,
	}
	item.AddTargets(model.TargetTo, addrs...)
	return item
}
