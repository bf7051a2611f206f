package domain

import "time"

// CategoryStatus 分类状态
type CategoryStatus string

const (
	CategoryStatusActive   CategoryStatus = "active"
	CategoryStatusInactive CategoryStatus = "inactive"
)

// Category 商品分类
type Category struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      CategoryStatus `json:"status"`
	SalesCount  int64          `json:"sales_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsActive 分类是否上架
func (c *Category) IsActive() bool {
	return c.Status == CategoryStatusActive
}

// CreateCategoryRequest 新建分类
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// UpdateCategoryRequest 更新分类，字段为空表示不修改
type UpdateCategoryRequest struct {
	Name        *string         `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string         `json:"description" binding:"omitempty,max=500"`
	Status      *CategoryStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}
