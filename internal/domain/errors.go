package domain

import "errors"

// ErrorKind 错误分类，API 层据此选择 HTTP 状态码
type ErrorKind int

const (
	KindUnknown    ErrorKind = iota
	KindValidation           // 请求参数不合法
	KindNotFound             // 资源不存在
	KindBusiness             // 违反业务规则
	KindIntegrity            // 完整性校验失败（支付签名）
	KindAuth                 // 认证失败
	KindForbidden            // 无权限
)

// Error 带分类的业务错误。预定义实例作为哨兵错误使用 errors.Is 比较。
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// KindOf 返回错误链上第一个业务错误的分类
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Invalid 构造参数错误
func Invalid(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func newErr(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// 账户
var (
	ErrUserNotFound       = newErr(KindNotFound, "user not found")
	ErrUserExists         = newErr(KindBusiness, "username or email already exists")
	ErrInvalidCredentials = newErr(KindAuth, "invalid username or password")
	ErrUserInactive       = newErr(KindForbidden, "user is blocked")
	ErrNotAdmin           = newErr(KindForbidden, "admin privileges required")
	ErrUserMismatch       = newErr(KindForbidden, "user id does not match token")
	ErrAddressNotFound    = newErr(KindNotFound, "address not found")
)

// 商品目录
var (
	ErrCategoryNotFound   = newErr(KindNotFound, "category not found")
	ErrCategoryExists     = newErr(KindBusiness, "category name already exists")
	ErrProductNotFound    = newErr(KindNotFound, "product not found")
	ErrProductExists      = newErr(KindBusiness, "product title already exists")
	ErrProductUnavailable = newErr(KindBusiness, "product is not available")
	ErrVariantNotFound    = newErr(KindNotFound, "variant not found")
	ErrOfferNotFound      = newErr(KindNotFound, "offer not found")
	ErrCouponNotFound     = newErr(KindNotFound, "coupon not found")
	ErrCouponExists       = newErr(KindBusiness, "coupon code already exists")
	ErrCouponInactive     = newErr(KindBusiness, "coupon is not active")
	ErrCouponExpired      = newErr(KindBusiness, "coupon has expired")
	ErrCouponMinPurchase  = newErr(KindBusiness, "order amount below coupon minimum purchase")
	ErrCouponUsed         = newErr(KindBusiness, "coupon already used")
	ErrWishlistDuplicate  = newErr(KindBusiness, "product already in wishlist")
	ErrWishlistNotFound   = newErr(KindNotFound, "product not in wishlist")
)

// 购物车与库存
var (
	ErrCartNotFound      = newErr(KindNotFound, "cart not found")
	ErrCartItemNotFound  = newErr(KindNotFound, "cart item not found")
	ErrInsufficientStock = newErr(KindBusiness, "insufficient stock")
	ErrInvalidQuantity   = newErr(KindValidation, "quantity must be at least 1")
)

// 订单
var (
	ErrOrderNotFound             = newErr(KindNotFound, "order not found")
	ErrOrderItemNotFound         = newErr(KindNotFound, "order item not found")
	ErrOrderNotCancellable       = newErr(KindBusiness, "order can no longer be cancelled")
	ErrReturnNotDelivered        = newErr(KindBusiness, "only delivered orders can be returned")
	ErrReturnWindowExpired       = newErr(KindBusiness, "return window has expired")
	ErrReturnAlreadyRequested    = newErr(KindBusiness, "return already requested for this item")
	ErrReturnAlreadyResolved     = newErr(KindBusiness, "return request already resolved")
	ErrNoReturnRequested         = newErr(KindBusiness, "no pending return request")
	ErrPaymentRequiresDelivered  = newErr(KindBusiness, "payment can only be completed after delivery")
	ErrOrderClosed               = newErr(KindBusiness, "cancelled or returned order can no longer change status")
	ErrReturnedViaReturnFlow     = newErr(KindBusiness, "orders become returned only by accepting a return")
	ErrInvalidOrderStatus        = newErr(KindValidation, "invalid order status")
	ErrInvalidPaymentStatus      = newErr(KindValidation, "invalid payment status")
	ErrInvalidPaymentMethod      = newErr(KindValidation, "invalid payment method")
	ErrPaymentVerificationFailed = newErr(KindIntegrity, "payment verification failed")
	ErrEmptyOrder                = newErr(KindValidation, "order must contain at least one item")
)

// 钱包
var (
	ErrWalletNotFound      = newErr(KindNotFound, "wallet not found")
	ErrInsufficientBalance = newErr(KindBusiness, "insufficient wallet balance")
	ErrInvalidAmount       = newErr(KindValidation, "amount must be positive")
)
