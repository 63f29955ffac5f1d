package domain

import "time"

const (
	RoleAdmin = "ADMIN"
	RoleKasir = "KASIR"
)

type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductRequest carries create/update payloads. Price and Stock are pointers
// so a missing field can be told apart from an explicit zero.
type ProductRequest struct {
	Name  string `json:"name"`
	Price *int64 `json:"price"`
	Stock *int   `json:"stock"`
}

type CartItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type SaleRequest struct {
	Items []CartItem `json:"items"`
}

type TransactionItem struct {
	ID            string   `json:"id"`
	TransactionID string   `json:"transactionId"`
	ProductID     string   `json:"productId"`
	Qty           int      `json:"qty"`
	Price         int64    `json:"price"`
	Subtotal      int64    `json:"subtotal"`
	Product       *Product `json:"product,omitempty"`
}

type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Total     int64             `json:"total"`
	CreatedAt time.Time         `json:"createdAt"`
	User      *User             `json:"user,omitempty"`
	Items     []TransactionItem `json:"items"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthPayload is the data portion of login and register responses.
type AuthPayload struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Actor identifies the authenticated caller carried through request context.
type Actor struct {
	ID    string
	Email string
	Role  string
}

type ReportSummary struct {
	TotalTransactions int   `json:"totalTransactions"`
	TotalRevenue      int64 `json:"totalRevenue"`
}

type TopProduct struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	Revenue   int64  `json:"revenue"`
}

type SalesReport struct {
	Summary       ReportSummary    `json:"summary"`
	RevenueByDate map[string]int64 `json:"revenueByDate"`
	TopProducts   []TopProduct     `json:"topProducts"`
	Transactions  []Transaction    `json:"transactions"`
}

// ReportPeriod is the resolved date filter attached to exported documents.
type ReportPeriod struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}
