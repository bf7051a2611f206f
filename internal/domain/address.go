package domain

import "time"

// Address 用户收货地址
type Address struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ShippingAddress 下单时的地址快照，地址后续修改不影响历史订单
type ShippingAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Snapshot 生成地址快照
func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Name:       a.Name,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// AddressRequest 新建或更新地址
type AddressRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Phone      string `json:"phone" binding:"required,min=6,max=20"`
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"required,max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,max=100"`
	IsDefault  bool   `json:"is_default"`
}

// Apply 将请求写入地址
func (r *AddressRequest) Apply(a *Address) {
	a.Name = r.Name
	a.Phone = r.Phone
	a.Line1 = r.Line1
	a.Line2 = r.Line2
	a.City = r.City
	a.State = r.State
	a.PostalCode = r.PostalCode
	a.Country = r.Country
	a.IsDefault = r.IsDefault
}
