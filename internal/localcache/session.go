package localcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	keyLoggedIn          = "isLoggedIn"
	keyUserName          = "userName"
	keyUserEmail         = "userEmail"
	keyToken             = "token"
	keyUserLocation      = "userLocation"
	keyRequestedLocation = "hasRequestedLocation"
)

// Session - состояние входа клиента
type Session struct {
	LoggedIn  bool
	UserName  string
	UserEmail string
	Token     string
}

// UserLocation - последняя известная точка пользователя; Timestamp в миллисекундах
type UserLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

func (c *Cache) SaveSession(ctx context.Context, s Session) error {
	items := map[string]string{
		keyLoggedIn:  strconv.FormatBool(s.LoggedIn),
		keyUserName:  s.UserName,
		keyUserEmail: s.UserEmail,
		keyToken:     s.Token,
	}
	for key, value := range items {
		if err := c.store.SetItem(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) Session(ctx context.Context) (Session, error) {
	var s Session
	for key, dst := range map[string]*string{
		keyUserName:  &s.UserName,
		keyUserEmail: &s.UserEmail,
		keyToken:     &s.Token,
	} {
		value, _, err := c.store.GetItem(ctx, key)
		if err != nil {
			return Session{}, err
		}
		*dst = value
	}
	loggedIn, _, err := c.store.GetItem(ctx, keyLoggedIn)
	if err != nil {
		return Session{}, err
	}
	s.LoggedIn = loggedIn == "true"
	return s, nil
}

// SetLocation сохраняет точку и отмечает, что разрешение уже запрашивалось
func (c *Cache) SetLocation(ctx context.Context, lat, lng float64) (UserLocation, error) {
	loc := UserLocation{Lat: lat, Lng: lng, Timestamp: c.now().UnixMilli()}
	data, err := json.Marshal(loc)
	if err != nil {
		return UserLocation{}, fmt.Errorf("marshal location: %w", err)
	}
	if err := c.store.SetItem(ctx, keyUserLocation, string(data)); err != nil {
		return UserLocation{}, err
	}
	if err := c.store.SetItem(ctx, keyRequestedLocation, "true"); err != nil {
		return UserLocation{}, err
	}
	return loc, nil
}

// Location возвращает nil, если точка не сохранена или повреждена
func (c *Cache) Location(ctx context.Context) (*UserLocation, error) {
	raw, ok, err := c.store.GetItem(ctx, keyUserLocation)
	if err != nil || !ok {
		return nil, err
	}
	var loc UserLocation
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, nil
	}
	return &loc, nil
}

// LocationAge - сколько прошло с сохранения точки
func (c *Cache) LocationAge(loc *UserLocation) time.Duration {
	return c.now().Sub(time.UnixMilli(loc.Timestamp))
}

// HasRequestedLocation - запрашивалась ли точка у пользователя
func (c *Cache) HasRequestedLocation(ctx context.Context) (bool, error) {
	value, _, err := c.store.GetItem(ctx, keyRequestedLocation)
	return value == "true", err
}

// Logout очищает сессию и точку. Локальные обращения сохраняются
func (c *Cache) Logout(ctx context.Context) error {
	for _, key := range []string{keyLoggedIn, keyUserName, keyUserEmail, keyToken, keyUserLocation, keyRequestedLocation} {
		if err := c.store.RemoveItem(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
