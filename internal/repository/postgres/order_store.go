package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	repositoryErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/repository"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/repository/postgres/dto"
)

const duplicateKeyCode = "23505"

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{
		pool: pool,
	}
}

func (o *OrderStore) InsertOrder(ctx context.Context, order models.Order) error {
	const op = "postgres.OrderStore.InsertOrder"

	orderDTO := dto.FromDomain(models.NewOrderRecord(order))

	_, err := o.pool.Exec(ctx,
		`INSERT INTO orders (id, type, token_in, token_out, amount, slippage_bps, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		orderDTO.ID,
		orderDTO.Type,
		orderDTO.TokenIn,
		orderDTO.TokenOut,
		orderDTO.Amount,
		orderDTO.SlippageBps,
		orderDTO.Status,
		orderDTO.CreatedAt,
		orderDTO.UpdatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderAlreadyExists)
		}

		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (o *OrderStore) FinalizeOrder(ctx context.Context, params models.FinalizeOrderParams) error {
	const op = "postgres.OrderStore.FinalizeOrder"

	tag, err := o.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $2, venue = $3, executed_price = $4, tx_ref = $5, updated_at = $6
		 WHERE id = $1`,
		params.OrderID,
		string(models.OrderStatusConfirmed),
		string(params.Venue),
		params.Price,
		params.TxRef,
		params.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
	}

	return nil
}

func (o *OrderStore) FailOrder(ctx context.Context, params models.FailOrderParams) error {
	const op = "postgres.OrderStore.FailOrder"

	tag, err := o.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $2, failure_reason = $3, updated_at = $4
		 WHERE id = $1`,
		params.OrderID,
		string(models.OrderStatusFailed),
		params.Reason,
		params.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
	}

	return nil
}

func (o *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (models.OrderRecord, error) {
	const op = "postgres.OrderStore.GetOrder"

	rows, err := o.pool.Query(ctx,
		`SELECT id, type, token_in, token_out, amount, slippage_bps, status,
		        venue, executed_price, tx_ref, failure_reason, created_at, updated_at
		 FROM orders
		 WHERE id = $1
		 LIMIT 1`,
		id,
	)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("%s: query: %w", op, err)
	}

	orderDTO, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrderRecord{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
		}

		return models.OrderRecord{}, fmt.Errorf("%s: collect: %w", op, err)
	}

	return orderDTO.ToDomain(), nil
}

func isDuplicateKey(err error) bool {
	var postgresErr *pgconn.PgError

	if errors.As(err, &postgresErr) {
		return postgresErr.Code == duplicateKeyCode
	}

	return false
}
