package workforce

import "time"

// OrderStatus is the lifecycle state of a material order.
type OrderStatus string

const (
	OrderPending            OrderStatus = "Pending"
	OrderApproved           OrderStatus = "Approved"
	OrderDelivered          OrderStatus = "Delivered"
	OrderPartiallyDelivered OrderStatus = "PartiallyDelivered"
	OrderRejected           OrderStatus = "Rejected"
)

// OrderItem is one line of a material order.
type OrderItem struct {
	Name     string  `json:"name" bson:"name"`
	Quantity float64 `json:"quantity" bson:"quantity"`
	Unit     string  `json:"unit,omitempty" bson:"unit,omitempty"`
}

// MaterialOrder is a foreman's request for materials on a job.
type MaterialOrder struct {
	ID            string      `json:"id" bson:"_id"`
	ForemanID     string      `json:"foremanId" bson:"foremanId"`
	ForemanName   string      `json:"foremanName" bson:"foremanName"`
	JobName       string      `json:"jobName" bson:"jobName"`
	Items         []OrderItem `json:"items" bson:"items"`
	Status        OrderStatus `json:"status" bson:"status"`
	CreatedAt     time.Time   `json:"createdAt" bson:"createdAt"`
	DeliveryDate  *time.Time  `json:"deliveryDate,omitempty" bson:"deliveryDate,omitempty"`
	ReturnedItems []OrderItem `json:"returnedItems,omitempty" bson:"returnedItems,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (o MaterialOrder) Clone() MaterialOrder {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.ReturnedItems = append([]OrderItem(nil), o.ReturnedItems...)
	if o.DeliveryDate != nil {
		t := *o.DeliveryDate
		c.DeliveryDate = &t
	}
	return c
}
