package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/tably-labs/tably/config"
	"github.com/tably-labs/tably/events"
	"github.com/tably-labs/tably/server"
)

// seedPassword is shared by every demo account.
const seedPassword = "password123"

// NewSeedCmd creates the "seed" subcommand.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo restaurants and accounts",
		RunE:  runSeed,
	}

	cmd.Flags().String("config", "", "Path to tably.yaml")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (overrides config)")

	return cmd
}

type seedRestaurant struct {
	name       string
	ownerName  string
	ownerEmail string
	hours      server.WeeklyHours
}

type seedStaff struct {
	name  string
	email string
	role  events.StaffRole
}

func weekHours(openTime, closeTime string) server.WeeklyHours {
	hours := make(server.WeeklyHours, 7)
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		hours[day] = server.DayHours{Open: true, OpenTime: openTime, CloseTime: closeTime}
	}
	return hours
}

func seedRestaurants() []seedRestaurant {
	italiana := weekHours("11:00", "22:00")
	italiana["friday"] = server.DayHours{Open: true, OpenTime: "11:00", CloseTime: "23:00"}
	italiana["saturday"] = server.DayHours{Open: true, OpenTime: "11:00", CloseTime: "23:00"}
	italiana["sunday"] = server.DayHours{Open: true, OpenTime: "12:00", CloseTime: "21:00"}

	sushi := weekHours("12:00", "22:00")
	sushi["monday"] = server.DayHours{Open: false}

	asador := weekHours("12:00", "23:00")
	asador["friday"] = server.DayHours{Open: true, OpenTime: "12:00", CloseTime: "01:00"}
	asador["saturday"] = server.DayHours{Open: true, OpenTime: "12:00", CloseTime: "01:00"}

	return []seedRestaurant{
		{name: "La Cocina Italiana", ownerName: "Marco Rossi", ownerEmail: "marco.rossi@restaurant.com", hours: italiana},
		{name: "Sushi Master", ownerName: "Hiroshi Tanaka", ownerEmail: "hiroshi.tanaka@restaurant.com", hours: sushi},
		{name: "Burger Paradise", ownerName: "John Smith", ownerEmail: "john.smith@restaurant.com", hours: weekHours("10:00", "23:00")},
		{name: "El Asador Argentino", ownerName: "Carlos Mendoza", ownerEmail: "carlos.mendoza@restaurant.com", hours: asador},
		{name: "Thai Garden", ownerName: "Siriwan Wong", ownerEmail: "siriwan.wong@restaurant.com", hours: weekHours("11:30", "22:00")},
	}
}

// Staff accounts for the first seeded restaurant. Staff are clients bound
// to a restaurant through their staffRole.
func seedStaffUsers() []seedStaff {
	return []seedStaff{
		{name: "Giuseppe Admin", email: "admin.italiana@restaurant.com", role: events.StaffAdministrator},
		{name: "Alessandro Manager", email: "gerente.italiana@restaurant.com", role: events.StaffManager},
		{name: "Maria Cashier", email: "cajero.italiana@restaurant.com", role: events.StaffCashier},
		{name: "Marco Cook", email: "cocinero.italiana@restaurant.com", role: events.StaffCook},
		{name: "Luca Waiter", email: "mesero.italiana@restaurant.com", role: events.StaffWaiter},
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSeedConfig(cmd)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	store, err := server.NewSQLiteStore(server.SQLiteStoreConfig{DSN: cfg.Database.Path})
	if err != nil {
		return exitError(exitRuntime, "opening sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	authStore, err := server.NewAuthSQLiteStore(store.DB())
	if err != nil {
		return exitError(exitRuntime, "opening auth store: %v", err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	seeder := &seeder{store: store, auth: authStore, passwordHash: string(hash), now: time.Now().UTC()}

	restaurants := seedRestaurants()
	var first server.Restaurant
	for i, data := range restaurants {
		rec, err := seeder.ensureRestaurant(ctx, data)
		if err != nil {
			return fmt.Errorf("seeding %s: %w", data.name, err)
		}
		if i == 0 {
			first = rec
		}
		fmt.Fprintf(out, "restaurant %q ready (owner %s)\n", rec.Name, data.ownerEmail)
	}

	for _, data := range seedStaffUsers() {
		if err := seeder.ensureStaff(ctx, first.ID, data); err != nil {
			return fmt.Errorf("seeding staff %s: %w", data.email, err)
		}
		fmt.Fprintf(out, "staff %s ready (%s at %s)\n", data.email, data.role, first.Name)
	}

	clientID, err := seeder.ensureClient(ctx, "Demo Client", "client1@example.com")
	if err != nil {
		return fmt.Errorf("seeding client: %w", err)
	}
	fmt.Fprintln(out, "client client1@example.com ready")

	if err := seeder.demoActivity(ctx, first, clientID); err != nil {
		return fmt.Errorf("seeding demo activity: %w", err)
	}

	fmt.Fprintf(out, "done: %d restaurants, password for every account is %q\n", len(restaurants), seedPassword)
	return nil
}

// seeder groups the stores and shared state of a seeding run.
type seeder struct {
	store        *server.SQLiteStore
	auth         *server.AuthSQLiteStore
	passwordHash string
	now          time.Time
}

// ensureUser creates the user if the email is not taken and returns the
// record's ID either way. Reruns of seed are idempotent.
func (s *seeder) ensureUser(ctx context.Context, rec server.UserRecord) (string, error) {
	err := s.auth.CreateUser(ctx, rec)
	if err == nil {
		return rec.ID, nil
	}
	if !errors.Is(err, server.ErrUserExists) {
		return "", err
	}
	existing, ok, err := s.auth.GetUserByEmail(ctx, rec.Email)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", server.ErrUserNotFound
	}
	return existing.ID, nil
}

func (s *seeder) ensureRestaurant(ctx context.Context, data seedRestaurant) (server.Restaurant, error) {
	ownerID, err := s.ensureUser(ctx, server.UserRecord{
		ID:           uuid.New().String(),
		Email:        data.ownerEmail,
		Name:         data.ownerName,
		PasswordHash: s.passwordHash,
		Role:         events.RoleOwner,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	})
	if err != nil {
		return server.Restaurant{}, err
	}

	if existing, ok, err := s.store.FindRestaurantByOwner(ctx, ownerID); err != nil {
		return server.Restaurant{}, err
	} else if ok {
		return existing, nil
	}

	rec := server.Restaurant{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      data.name,
		IsActive:  true,
		IsOpen:    data.hours.OpenAt(s.now),
		Hours:     data.hours,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	if err := s.store.CreateRestaurant(ctx, rec); err != nil {
		return server.Restaurant{}, err
	}
	return rec, nil
}

func (s *seeder) ensureStaff(ctx context.Context, restaurantID string, data seedStaff) error {
	_, err := s.ensureUser(ctx, server.UserRecord{
		ID:           uuid.New().String(),
		Email:        data.email,
		Name:         data.name,
		PasswordHash: s.passwordHash,
		Role:         events.RoleClient,
		StaffRole:    data.role,
		RestaurantID: restaurantID,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	})
	return err
}

func (s *seeder) ensureClient(ctx context.Context, name, email string) (string, error) {
	return s.ensureUser(ctx, server.UserRecord{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: s.passwordHash,
		Role:         events.RoleClient,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	})
}

// demoActivity leaves a reservation, a kitchen ticket, and an announcement
// in the first restaurant so fresh installs have live data to stream.
func (s *seeder) demoActivity(ctx context.Context, rest server.Restaurant, clientID string) error {
	existing, err := s.store.ListAnnouncements(ctx, 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	reservation := server.Reservation{
		ID:           uuid.New().String(),
		RestaurantID: rest.ID,
		ClientID:     clientID,
		Date:         s.now.Add(24 * time.Hour).Truncate(time.Hour),
		PartySize:    4,
		Status:       server.ReservationPending,
		Notes:        "Window table if possible",
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		return err
	}

	sale := server.Sale{
		ID:           uuid.New().String(),
		RestaurantID: rest.ID,
		CreatedBy:    rest.OwnerID,
		Status:       server.SalePending,
		Items: []server.SaleItem{
			{MenuItem: "Spaghetti Carbonara", Quantity: 2, Price: 18.99},
			{MenuItem: "Tiramisu", Quantity: 1, Price: 8.99},
		},
		Total:     2*18.99 + 8.99,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	if err := s.store.CreateSale(ctx, sale); err != nil {
		return err
	}

	return s.store.CreateAnnouncement(ctx, server.Announcement{
		ID:        uuid.New().String(),
		Title:     "Welcome to Tably",
		Body:      "Demo data is loaded. Sign in with any seeded account to explore.",
		CreatedBy: rest.OwnerID,
		CreatedAt: s.now,
	})
}

func loadSeedConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	path, found, err := config.Discover(explicitPath)
	if err != nil {
		return config.Config{}, err
	}
	if found {
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	if sqlitePath, _ := cmd.Flags().GetString("sqlite-path"); sqlitePath != "" {
		cfg.Database.Path = sqlitePath
	}

	return cfg, nil
}
