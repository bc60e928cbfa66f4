package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"thermonode/backend/internal/settings"
	"thermonode/backend/pkg/router"
	"thermonode/backend/pkg/utils"
)

const (
	MaxBodySize = 4096
	MaxBodyText = "4KB"

	MessageTemperatureUnknown = "Temperature could not be determined!"
	MessageNoSettings         = "No settings found!"
	MessageInvalidJSON        = "Could not parse JSON!"
	MessageSaveFailed         = "Could not save settings!"
	MessageOK                 = "OK!"
)

func (h *Handler) GetTemperature(w http.ResponseWriter, r *http.Request) error {
	t := h.state.Readings().Temperature
	if !t.Valid() {
		return NewError(http.StatusInternalServerError, MessageTemperatureUnknown)
	}

	RespondText(w, r, http.StatusOK, t.String())

	return nil
}

func (h *Handler) RegisterGetTemperature(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getTemperature",
		Summary:     "Current temperature",
		Description: "Latest sampled temperature in degrees Celsius with two decimals",
		Group:       StatusGroup,
		Handler:     h.ErrorHandler(h.GetTemperature),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {
				Description: "Temperature",
				ContentType: ContentTypeText,
				Type:        "",
				Examples:    map[string]any{"Success": "21.50"},
			},
			http.StatusInternalServerError: {
				Description: "The thermometer has no valid reading",
				ContentType: ContentTypeText,
				Type:        "",
				Examples:    map[string]any{"Unknown": MessageTemperatureUnknown},
			},
		},
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) error {
	h.RespondJSON(w, r, http.StatusOK, h.state.Settings())

	return nil
}

func exampleSettings() settings.Settings {
	return settings.Settings{
		Name:                 "beef",
		ActivateReporting:    true,
		ReportAddress:        "http://openhab/rest/items/temperature/state",
		IntervalSecs:         settings.DefaultIntervalSecs,
		ReportBattery:        true,
		ReportBatteryAddress: "http://openhab/rest/items/battery/state",
	}
}

func (h *Handler) RegisterGetSettings(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getSettings",
		Summary:     "Current settings",
		Description: "Settings the node booted with",
		Group:       SettingsGroup,
		Handler:     h.ErrorHandler(h.GetSettings),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {
				Description: "Settings",
				Type:        settings.Settings{},
				Examples:    map[string]any{"Success": exampleSettings()},
			},
		},
	})
}

func (h *Handler) PostSettings(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return NewError(http.StatusRequestEntityTooLarge, "Request body too large (max "+MaxBodyText+")")
		}

		return NewError(http.StatusBadRequest, MessageInvalidJSON)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return NewError(http.StatusBadRequest, MessageNoSettings)
	}

	s, err := settings.ParsePayload(body)
	if err != nil {
		var validationErr *settings.ValidationError
		if errors.As(err, &validationErr) {
			return NewError(http.StatusBadRequest, validationErr.Error())
		}

		return NewError(http.StatusBadRequest, MessageInvalidJSON)
	}

	if err := h.store.Save(r.Context(), s); err != nil {
		h.logger(r).Error("failed to persist settings", utils.ErrAttr(err))
		return NewError(http.StatusInternalServerError, MessageSaveFailed)
	}

	h.logger(r).Info("settings updated, restarting", slog.Duration("delay", h.restartDelay))

	RespondText(w, r, http.StatusOK, MessageOK)

	time.AfterFunc(h.restartDelay, h.restarter.Restart)

	return nil
}

func (h *Handler) RegisterPostSettings(path string, rb *router.RouteBuilder) {
	text := func(description, example string) router.ResponseSpec {
		return router.ResponseSpec{
			Description: description,
			ContentType: ContentTypeText,
			Type:        "",
			Examples:    map[string]any{"Example": example},
		}
	}

	rb.MustPost(path, router.RouteSpec{
		OperationID: "updateSettings",
		Summary:     "Replace the settings",
		Description: fmt.Sprintf("Validates and stores all seven settings, then restarts the node after %s", RestartDelay),
		Group:       SettingsGroup,
		Handler:     h.ErrorHandler(h.PostSettings),
		RequestType: &router.RequestBodySpec{
			Type:     settings.Settings{},
			Examples: map[string]any{"Full update": exampleSettings()},
		},
		Responses: map[int]router.ResponseSpec{
			http.StatusOK:                    text("Settings stored, restart scheduled", MessageOK),
			http.StatusBadRequest:            text("Empty, malformed or incomplete payload", settings.KeyIntervalSecs+" missing!"),
			http.StatusRequestEntityTooLarge: text("Payload too large", "Request body too large (max "+MaxBodyText+")"),
			http.StatusInternalServerError:   text("Settings could not be stored", MessageSaveFailed),
		},
	})
}
