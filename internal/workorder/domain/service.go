package domain

import (
	"context"
	"errors"
)

type CreateWorkOrderRequest struct {
	Number     string
	Title      string
	ClientName string
	ClientType string
}

type Service interface {
	Create(ctx context.Context, req CreateWorkOrderRequest) (WorkOrder, error)
	SetStatus(ctx context.Context, id string, status WorkOrderStatus) (WorkOrder, error)
	GetByID(ctx context.Context, id string) (WorkOrder, error)
	List(ctx context.Context) ([]WorkOrder, error)
}

var (
	ErrInvalidID     = errors.New("invalid_work_order_id")
	ErrInvalidNumber = errors.New("invalid_work_order_number")
	ErrInvalidTitle  = errors.New("invalid_work_order_title")
	ErrInvalidStatus = errors.New("invalid_work_order_status")
	ErrNumberTaken   = errors.New("work_order_number_taken")
	ErrNotFound      = errors.New("work_order_not_found")
	ErrClosed        = errors.New("work_order_closed")
)
