package local

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

// The persisted record is a JSON array of snake_case objects, mirroring the
// remote API's row shape so a dumped file reads the same as a GET response.

func encodeItems(items []cart.Item) ([]byte, error) {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		e.Str(it.Price.String())
		e.FieldStart("original_price")
		e.Str(it.OriginalPrice.String())
		e.FieldStart("discount")
		e.Str(it.Discount.String())
		e.FieldStart("image_url")
		e.Str(it.ImageURL)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("added_at")
		e.Str(it.AddedAt.UTC().Format(time.RFC3339Nano))
		e.FieldStart("updated_at")
		e.Str(it.UpdatedAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes(), nil
}

func decodeItems(data []byte) ([]cart.Item, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, errors.New("persisted cart is not an array")
	}

	var items []cart.Item
	err := d.Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		// One undecodable entry must not take the rest of the cart
		// with it: skip the element and keep decoding.
		it, err := decodeItem(jx.DecodeBytes(raw))
		if err != nil {
			return nil
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			it.ID = v
			return nil
		case "name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			it.Name = v
			return nil
		case "price":
			return decodeDecimal(d, &it.Price)
		case "original_price":
			return decodeDecimal(d, &it.OriginalPrice)
		case "discount":
			return decodeDecimal(d, &it.Discount)
		case "image_url":
			v, err := d.Str()
			if err != nil {
				return err
			}
			it.ImageURL = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			it.Quantity = v
			return nil
		case "added_at":
			return decodeTime(d, &it.AddedAt)
		case "updated_at":
			return decodeTime(d, &it.UpdatedAt)
		default:
			return d.Skip()
		}
	})
	return it, err
}

func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrap(err, "parse decimal")
	}
	*dst = v
	return nil
}

func decodeTime(d *jx.Decoder, dst *time.Time) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return errors.Wrap(err, "parse timestamp")
	}
	*dst = t
	return nil
}
