package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// OrderJob — полезная нагрузка задачи исполнения. Сообщение ключуется
// идентификатором ордера: партиционирование по ключу даёт внешнюю
// гарантию единственного писателя на ордер, на которую опирается ядро.
type OrderJob struct {
	OrderID      uuid.UUID `json:"order_id"`
	DispatchedAt time.Time `json:"dispatched_at"`
}
