package consumers

import (
	"context"
	"fmt"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/logger"
	"github.com/medflow/timesheet-service/pkg/messaging"
)

// EmployeeStore is the part of the employee directory the consumer writes to.
type EmployeeStore interface {
	Upsert(ctx context.Context, emp *domain.Employee) error
	Deactivate(ctx context.Context, id string) error
}

// EmployeeEventConsumer mirrors staff employee events into the local directory.
type EmployeeEventConsumer struct {
	consumer  *messaging.Consumer
	employees EmployeeStore
	logger    *logger.Logger
}

// NewEmployeeEventConsumer declares the queue, binds it to staff events and registers handlers.
func NewEmployeeEventConsumer(rmq *messaging.RabbitMQ, employees EmployeeStore, log *logger.Logger) (*EmployeeEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, config.ServiceName+".employee-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeStaffEvents, "staff.employee.#"); err != nil {
		return nil, err
	}

	c := newEmployeeEventConsumer(employees, log)
	c.consumer = consumer
	c.register(consumer)
	return c, nil
}

func newEmployeeEventConsumer(employees EmployeeStore, log *logger.Logger) *EmployeeEventConsumer {
	return &EmployeeEventConsumer{
		employees: employees,
		logger:    log.WithComponent("employee_consumer"),
	}
}

type registrar interface {
	RegisterHandler(eventType string, handler messaging.MessageHandler)
}

func (c *EmployeeEventConsumer) register(r registrar) {
	r.RegisterHandler(messaging.EventEmployeeCreated, c.handleEmployeeUpserted)
	r.RegisterHandler(messaging.EventEmployeeUpdated, c.handleEmployeeUpserted)
	r.RegisterHandler(messaging.EventEmployeeDeleted, c.handleEmployeeDeleted)
}

// Start starts consuming messages
func (c *EmployeeEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *EmployeeEventConsumer) handleEmployeeUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.EmployeeID == "" {
		return fmt.Errorf("%s event %s has no employee_id", event.Type, event.ID)
	}

	c.logger.Info().
		Str("event_type", event.Type).
		Str("employee_id", data.EmployeeID).
		Msg("syncing employee")

	status := data.Status
	if status != domain.EmployeeInactive {
		status = domain.EmployeeActive
	}

	return c.employees.Upsert(ctx, &domain.Employee{
		ID:      data.EmployeeID,
		UserID:  data.UserID,
		Name:    data.Name,
		Company: data.Company,
		Status:  status,
	})
}

func (c *EmployeeEventConsumer) handleEmployeeDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().Str("employee_id", data.EmployeeID).Msg("deactivating deleted employee")

	return c.employees.Deactivate(ctx, data.EmployeeID)
}
