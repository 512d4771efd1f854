package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pms/src/config"
	"pms/src/middlewares"
	"pms/src/types"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

type TestSuite struct {
	suite.Suite
	StaffToken    string
	CustomerToken string
}

func generateTestJWT(username string, role types.Role) (string, error) {
	claims := types.Claims{
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
	}

	staff, err := generateTestJWT("gate-staff", types.ROLE_STAFF)
	if err != nil {
		s.T().Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.StaffToken = staff

	customer, err := generateTestJWT("customer-1", types.ROLE_CUSTOMER)
	if err != nil {
		s.T().Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.CustomerToken = customer
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestUpdateSlotValidation() {
	router := setupRouter()
	detectorRoutes(apiv1Group(router))

	s.Run("Should reject a body without is_occupied", func() {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(map[string]any{"slot_id": "A1"})
		req, _ := http.NewRequest("POST", "/api/v1/update-slot", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		errMsg := gjson.Get(string(rbytes), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("Should reject an unparseable timestamp", func() {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(map[string]any{
			"slot_id":     "A1",
			"is_occupied": true,
			"timestamp":   "yesterday",
		})
		req, _ := http.NewRequest("POST", "/api/v1/update-slot", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestDetectorKey() {
	os.Setenv("DETECTOR_API_KEY", "sekret")
	defer os.Unsetenv("DETECTOR_API_KEY")

	router := setupRouter()
	apiv1 := apiv1Group(router)
	detector := apiv1.Group("")
	detector.Use(middlewares.DetectorAuthMiddleware)
	detectorRoutes(detector)

	w := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]any{"slot_id": "A1", "is_occupied": true})
	req, _ := http.NewRequest("POST", "/api/v1/update-slot", strings.NewReader(string(body)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestAssignValidation() {
	router := setupRouter()
	sessionHandlers(apiv1Group(router))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/sessions/assign", strings.NewReader("{}"))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func (s *TestSuite) TestBookingValidation() {
	router := setupRouter()
	bookingHandlers(apiv1Group(router))

	s.Run("Should reject a booking in the past", func() {
		w := httptest.NewRecorder()
		past := time.Now().Add(-2 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		body, _ := json.Marshal(types.CreateBookingRequestBody{
			CustomerID:       "CUST001",
			VehicleNumber:    "KA01AB1234",
			SlotID:           "A1",
			ScheduledArrival: past,
			DurationMinutes:  60,
		})
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a duration under the minimum", func() {
		w := httptest.NewRecorder()
		future := time.Now().Add(2 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		body, _ := json.Marshal(types.CreateBookingRequestBody{
			CustomerID:       "CUST001",
			VehicleNumber:    "KA01AB1234",
			SlotID:           "A1",
			ScheduledArrival: future,
			DurationMinutes:  15,
		})
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject availability query without arrival", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/availability", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestAuthRequired() {
	router := setupRouter()
	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware)
	slotHandlers(authorized)

	s.Run("Should reject a request without a token", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/slots", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 401, w.Code)
	})

	s.Run("Should reject a malformed token", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/slots", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestRoleRequired() {
	router := setupRouter()
	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware)
	staff := authorized.Group("")
	staff.Use(middlewares.RequireRole(types.ROLE_STAFF, types.ROLE_MANAGER))
	staffBookingHandlers(staff)

	s.Run("Should reject a customer on a staff route", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings/1/confirm-arrival", strings.NewReader("{}"))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.CustomerToken))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 403, w.Code)
	})

	s.Run("Should reject a non-numeric booking id for staff", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings/abc/confirm-arrival", strings.NewReader("{}"))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.StaffToken))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
