package service

import (
	"context"
	"fmt"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/pkg/response"
)

// ListStages returns the public stage catalogue with courses and the
// staff serving each stage, the shape the booking front-end consumes.
func (s *Service) ListStages(ctx context.Context) ([]*api.StageResponse, error) {
	const op = "service.ListStages"

	stages, err := s.store.ListStages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.StageResponse, 0, len(stages))
	for _, stage := range stages {
		resp := &api.StageResponse{
			ID:          stage.ID,
			Name:        stage.Name,
			Description: stage.Description,
		}

		courses, err := s.store.ListCourses(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, c := range courses {
			resp.Courses = append(resp.Courses, api.CourseResponse{ID: c.ID, Name: c.Name, Order: c.DisplayOrder})
		}

		staff, err := s.store.ListStaffByStage(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, m := range staff {
			resp.Staff = append(resp.Staff, api.StaffResponse{ID: m.ID, Name: m.Name})
		}

		result = append(result, resp)
	}

	return result, nil
}

// DeleteStaffMember removes a staff member and, explicitly and in
// order, everything they own: appointments first, then slots, then the
// staff row. Supervisor only.
func (s *Service) DeleteStaffMember(ctx context.Context, actor models.Actor, staffID string) error {
	const op = "service.DeleteStaffMember"

	if !actor.IsSupervisor() {
		return fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if _, err := s.store.GetStaffMember(ctx, staffID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withRetry(ctx, op, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := s.store.DeleteStaffAppointments(ctx, tx, staffID); err != nil {
			return err
		}
		if err := s.store.DeleteStaffSlots(ctx, tx, staffID); err != nil {
			return err
		}
		if err := s.store.DeleteStaffMember(ctx, tx, staffID); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteStage removes a stage and its dependents in order:
// appointments, slots, courses, then the stage row. Supervisor only.
func (s *Service) DeleteStage(ctx context.Context, actor models.Actor, stageID string) error {
	const op = "service.DeleteStage"

	if !actor.IsSupervisor() {
		return fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if _, err := s.store.GetStage(ctx, stageID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withRetry(ctx, op, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := s.store.DeleteStageAppointments(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.store.DeleteStageSlots(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.store.DeleteStageCourses(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.store.DeleteStage(ctx, tx, stageID); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
