package domain

import (
	"context"
	"errors"
)

type CreateWarehouseRequest struct {
	Name    string
	Address string
	City    string
	Country string
	Phone   string
}

type UpdateWarehouseRequest struct {
	Name    *string
	Address *string
	City    *string
	Country *string
	Phone   *string
}

type Service interface {
	Create(ctx context.Context, req CreateWarehouseRequest) (Warehouse, error)
	Update(ctx context.Context, id string, req UpdateWarehouseRequest) (Warehouse, error)
	Deactivate(ctx context.Context, id string) (Warehouse, error)
	GetByID(ctx context.Context, id string) (Warehouse, error)
	List(ctx context.Context) ([]Warehouse, error)
}

var (
	ErrInvalidID   = errors.New("invalid_warehouse_id")
	ErrInvalidName = errors.New("invalid_warehouse_name")
	ErrNameTaken   = errors.New("warehouse_name_taken")
	ErrNotFound    = errors.New("warehouse_not_found")
	ErrInactive    = errors.New("warehouse_inactive")
)
