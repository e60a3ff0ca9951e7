package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
	"github.com/Hasnainmunshi/diagnostic-management/internal/logging"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

// SeedPassword is shared by every seeded account so the simulator can log in.
const SeedPassword = "seed-password"

var (
	specialties = []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}
	testCategories = []string{"Blood", "Imaging", "Urine", "Cardiac", "Allergy"}
	slotTimes      = []string{"09:00", "10:00", "11:00", "14:00"}
)

type seeder struct {
	catalog *catalog.Service
	slots   *slots.Service
	admin   auth.Caller
	loc     *time.Location
	logger  zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	ctx = context.Background()
	if _, err := db.NewMigrator(pool, logger).Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	catalogSvc := catalog.NewService(catalog.NewPgRepository(pool), cfg.MaxSlots, logger)
	s := &seeder{
		catalog: catalogSvc,
		slots:   slots.NewService(slots.NewPgStore(pool), catalogSvc, redisclient.NewLocalLocker(), cfg.Zone(), logger),
		admin:   auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin},
		loc:     cfg.Zone(),
		logger:  logger,
	}

	centers, err := s.seedCenters(ctx, envInt("SEED_CENTERS", 5))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed centers")
	}
	if err := s.seedDoctors(ctx, centers, envInt("SEED_DOCTORS", 50), envInt("SEED_SLOT_DAYS", 4)); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := s.seedPatients(ctx, envInt("SEED_PATIENTS", 500)); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Str("password", SeedPassword).Msg("seed complete")
}

func (s *seeder) seedCenters(ctx context.Context, count int) ([]catalog.Center, error) {
	s.logger.Info().Int("count", count).Msg("seeding centers")

	centers := make([]catalog.Center, 0, count)
	for i := 0; i < count; i++ {
		addr := gofakeit.Address()
		c, err := s.catalog.CreateCenter(ctx, s.admin, catalog.CenterInput{
			Name:    gofakeit.Company() + " Diagnostics",
			Address: addr.Address,
			Contact: gofakeit.Phone(),
			Email:   gofakeit.Email(),
		})
		if err != nil {
			return nil, err
		}

		for j := 0; j < 3; j++ {
			_, err := s.catalog.CreateTest(ctx, s.admin, catalog.TestInput{
				CenterID:    c.ID,
				Name:        gofakeit.HipsterWord() + " panel",
				Category:    testCategories[gofakeit.Number(0, len(testCategories)-1)],
				Price:       int64(gofakeit.Number(20, 300)) * 100,
				Description: gofakeit.Sentence(8),
			})
			if err != nil {
				return nil, err
			}
		}

		if _, err := s.catalog.CreateStaff(ctx, s.admin, c.ID, auth.RoleEmployee, s.person()); err != nil {
			return nil, err
		}
		centers = append(centers, *c)
	}
	return centers, nil
}

func (s *seeder) seedDoctors(ctx context.Context, centers []catalog.Center, count, days int) error {
	s.logger.Info().Int("count", count).Int("slot_days", days).Msg("seeding doctors")

	today := slots.Today(time.Now(), s.loc)
	for i := 0; i < count; i++ {
		d, err := s.catalog.CreateDoctor(ctx, s.admin, catalog.DoctorInput{
			PersonInput:     s.person(),
			Specialty:       specialties[gofakeit.Number(0, len(specialties)-1)],
			Degree:          "MBBS",
			ExperienceYears: gofakeit.Number(1, 30),
			Fee:             int64(gofakeit.Number(30, 200)) * 100,
		})
		if err != nil {
			return err
		}

		if len(centers) > 0 {
			c := centers[i%len(centers)]
			if err := s.catalog.AddDoctorToCenter(ctx, s.admin, c.ID, d.ID); err != nil {
				return err
			}
		}

		var inputs []slots.SlotInput
		for day := 1; day <= days; day++ {
			date := today.AddDate(0, 0, day).Format(time.DateOnly)
			for _, clock := range slotTimes {
				inputs = append(inputs, slots.SlotInput{Date: date, Time: clock})
			}
		}
		if _, err := s.slots.AddSlots(ctx, s.admin, d.ID, inputs); err != nil {
			return fmt.Errorf("slots for %s: %w", d.ID, err)
		}
	}

	s.logger.Info().Msg("doctors seeded")
	return nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.logger.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		if _, err := s.catalog.RegisterPatient(ctx, s.person()); err != nil {
			return err
		}
		if (i+1)%100 == 0 {
			s.logger.Info().Msgf("patients seeded: %d/%d", i+1, count)
		}
	}

	s.logger.Info().Msg("patients seeded")
	return nil
}

func (s *seeder) person() catalog.PersonInput {
	return catalog.PersonInput{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Username() + "." + uuid.NewString()[:8] + "@example.com",
		Password: SeedPassword,
		Phone:    gofakeit.Phone(),
		Address:  gofakeit.Address().Address,
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
